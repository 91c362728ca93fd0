package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulwark/pkg/platform/audit"
	"bulwark/pkg/requestcontext"
)

type recordingPublisher struct {
	events []audit.Event
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func TestLogAudit(t *testing.T) {
	t.Run("logs and emits with subject and attrs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		pub := &recordingPublisher{}
		ctx := requestcontext.WithRequestID(context.Background(), "req-9")

		LogAudit(ctx, logger, pub, "intrusion", audit.EventIPBlocked, audit.DecisionBlocked,
			"ip", "203.0.113.0/24", "reason", "threshold_exceeded", "count", 5)

		require.Len(t, pub.events, 1)
		e := pub.events[0]
		assert.Equal(t, "intrusion", e.Component)
		assert.Equal(t, "ip_blocked", e.Action)
		assert.Equal(t, "203.0.113.0/24", e.Subject)
		assert.Equal(t, "threshold_exceeded", e.Reason)
		assert.Equal(t, "req-9", e.RequestID)
		assert.Equal(t, "5", e.Attrs["count"])
		assert.NotContains(t, e.Attrs, "request_id")

		assert.Contains(t, buf.String(), `"log_type":"audit"`)
		assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	})

	t.Run("subject falls back to user id", func(t *testing.T) {
		pub := &recordingPublisher{}
		LogAudit(context.Background(), nil, pub, "ratelimit", audit.EventHourlyRateLimited, audit.DecisionDenied, "user_id", "u-1")
		require.Len(t, pub.events, 1)
		assert.Equal(t, "u-1", pub.events[0].Subject)
	})

	t.Run("publisher errors are logged not returned", func(t *testing.T) {
		var buf bytes.Buffer
		pub := &recordingPublisher{err: errors.New("buffer full")}
		LogAudit(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)), pub, "ratelimit",
			audit.EventTokenBucketExhausted, audit.DecisionDenied, "key", "bucket:upload:user_1")
		assert.Contains(t, buf.String(), "failed to emit audit event")
	})

	t.Run("nil publisher only logs", func(t *testing.T) {
		var buf bytes.Buffer
		LogAudit(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)), nil, "ratelimit",
			audit.EventUserLimitsReset, audit.DecisionReset, "user_id", "u-1")
		assert.Contains(t, buf.String(), "user_rate_limits_reset")
	})
}
