package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		after := time.Now()

		assert.False(t, got.Before(before))
		assert.False(t, got.After(after))
	})

	t.Run("returns injected time", func(t *testing.T) {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
	})
}

func TestAccessorsDefaultToEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, UserID(ctx))
	assert.Empty(t, DeviceID(ctx))
}

func TestAccessorsRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientMetadata(ctx, "203.0.113.9", "curl/8.0")
	ctx = WithUserID(ctx, "user-42")
	ctx = WithDeviceID(ctx, "device-7")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "203.0.113.9", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "user-42", UserID(ctx))
	assert.Equal(t, "device-7", DeviceID(ctx))
}
