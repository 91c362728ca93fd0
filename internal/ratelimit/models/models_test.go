package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	assert.Equal(t, 10, Remaining(10, 0))
	assert.Equal(t, 0, Remaining(10, 10))
	assert.Equal(t, 0, Remaining(10, 11), "never negative")
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	r := &NotificationResult{RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, 2, r.RetryAfterSeconds())

	b := &BucketResult{RetryAfter: 0}
	assert.Equal(t, 0, b.RetryAfterSeconds())
}

func TestNewWindowUsage(t *testing.T) {
	u := NewWindowUsage(3, 10, 42*time.Second)
	assert.Equal(t, WindowUsage{Count: 3, Limit: 10, Remaining: 7, ResetInSeconds: 42}, u)
}
