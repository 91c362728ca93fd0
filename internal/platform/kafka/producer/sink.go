package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"bulwark/pkg/platform/audit"
)

// Header names set on every audit record.
const (
	HeaderComponent = "component"
	HeaderAction    = "action"
)

// Publisher sends one message. *Producer implements it.
type Publisher interface {
	Produce(ctx context.Context, msg *Message) error
}

// AuditSink writes audit events as JSON records keyed by subject, so all
// events about one address land on the same partition in order.
type AuditSink struct {
	publisher Publisher
	topic     string
}

func NewAuditSink(publisher Publisher, topic string) *AuditSink {
	return &AuditSink{publisher: publisher, topic: topic}
}

func (s *AuditSink) Append(ctx context.Context, e audit.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.publisher.Produce(ctx, &Message{
		Topic: s.topic,
		Key:   []byte(e.Subject),
		Value: value,
		Headers: map[string]string{
			HeaderComponent: e.Component,
			HeaderAction:    e.Action,
		},
	})
}
