// Package observability provides the audit logging helper shared by the
// admission gates.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"bulwark/pkg/platform/attrs"
	"bulwark/pkg/platform/audit"
	"bulwark/pkg/requestcontext"
)

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// subjectKeys are tried in order to pick the event subject.
var subjectKeys = []string{"ip", "user_id", "device_id", "key", "identifier"}

// LogAudit logs a security decision with log_type=audit and forwards it to
// the publisher when one is configured. attrList is a slog-style key/value
// list; every pair is copied onto the event's Attrs.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, component string, event audit.AuditEvent, decision string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	if logger != nil {
		args := append([]any{"event", string(event), "log_type", "audit", "component", component, "decision", decision}, attrList...)
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}

	var subject string
	for _, key := range subjectKeys {
		if subject = attrs.ExtractString(attrList, key); subject != "" {
			break
		}
	}

	if err := publisher.Emit(ctx, audit.Event{
		Component: component,
		Action:    string(event),
		Subject:   subject,
		Decision:  decision,
		Reason:    attrs.ExtractString(attrList, "reason"),
		RequestID: requestID,
		Attrs:     toAttrs(attrList),
	}); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func toAttrs(kv []any) map[string]string {
	if len(kv) < 2 {
		return nil
	}
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok || k == "request_id" {
			continue
		}
		out[k] = fmt.Sprintf("%v", kv[i+1])
	}
	return out
}
