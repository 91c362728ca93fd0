// Package consumer reads audit events back from Kafka. bulwarkctl uses it to
// tail the security event stream.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"bulwark/internal/platform/kafka"
	"bulwark/pkg/platform/audit"
)

// Handler processes one decoded event. A returned error stops Run.
type Handler func(ctx context.Context, event audit.Event) error

type Config struct {
	Brokers string
	Topic   string
	// GroupID is optional; without it the consumer reads directly and
	// commits nothing.
	GroupID string
	// FromStart replays the retained stream instead of only new events.
	FromStart bool
}

type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
	group  bool
}

func New(cfg Config, logger *slog.Logger) (*Consumer, error) {
	brokers := kafka.ParseBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	offset := kgo.NewOffset().AtEnd()
	if cfg.FromStart {
		offset = kgo.NewOffset().AtStart()
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(offset),
	}
	if cfg.GroupID != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.GroupID), kgo.DisableAutoCommit())
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger, group: cfg.GroupID != ""}, nil
}

// Run polls until ctx is cancelled or handle fails. Records that do not
// decode as audit events are logged and skipped. In group mode offsets are
// committed after each handled batch.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})

		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			var e audit.Event
			if err := json.Unmarshal(r.Value, &e); err != nil {
				c.logger.Warn("skipping undecodable audit record",
					"partition", r.Partition,
					"offset", r.Offset,
					"error", err,
				)
				return
			}
			handleErr = handle(ctx, e)
		})
		if handleErr != nil {
			return handleErr
		}

		if c.group {
			if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("failed to commit offsets", "error", err)
			}
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
