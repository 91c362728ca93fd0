package audit

import (
	"context"
	"time"
)

// Event is emitted whenever an admission gate makes a security-relevant
// decision. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Component string            `json:"component"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	Decision  string            `json:"decision"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Decisions recorded on events.
const (
	DecisionDenied    = "denied"
	DecisionBlocked   = "blocked"
	DecisionAllowed   = "allowed"
	DecisionUnblocked = "unblocked"
	DecisionReset     = "reset"
	DecisionCleared   = "cleared"
)

type AuditEvent string

const (
	EventNotificationRateLimited AuditEvent = "notification_rate_limited"
	EventHourlyRateLimited       AuditEvent = "hourly_rate_limited"
	EventDailyRateLimited        AuditEvent = "daily_rate_limited"
	EventTokenBucketExhausted    AuditEvent = "token_bucket_exhausted"
	EventUserLimitsReset         AuditEvent = "user_rate_limits_reset"
	EventReputationBlocked       AuditEvent = "ip_reputation_blocked"
	EventReputationInvalidated   AuditEvent = "ip_reputation_invalidated"
	EventHoneypotTriggered       AuditEvent = "honeypot_triggered"
	EventSuspiciousPattern       AuditEvent = "suspicious_pattern_detected"
	EventIPBlocked               AuditEvent = "ip_blocked"
	EventIPUnblocked             AuditEvent = "ip_unblocked"
	EventBlockedRequestRejected  AuditEvent = "blocked_request_rejected"
)
