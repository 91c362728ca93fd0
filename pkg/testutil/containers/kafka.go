//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

// KafkaContainer is a single-node Redpanda broker for the audit stream.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string

	topics atomic.Int64
}

// NewKafkaContainer starts the broker. Topics are auto-created on first
// produce, so tests only need a fresh name from Topic.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := kafka.Run(ctx,
		"redpandadata/redpanda:latest",
		kafka.WithClusterID("bulwark-audit"),
	)
	if err != nil {
		t.Fatalf("start kafka container: %v", err)
	}
	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("kafka brokers: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})
	return &KafkaContainer{Container: container, Brokers: strings.Join(brokers, ",")}
}

// Topic returns a topic name unique within the container's lifetime so
// suites sharing the broker never read each other's events.
func (k *KafkaContainer) Topic(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, k.topics.Add(1))
}
