// Package kafka carries filter-job requests and results over Kafka topics
// using segmentio/kafka-go. Payloads are JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/resilience"
)

// MessageHandler processes one message. A returned error is retried; the
// message is committed only once the handler succeeds.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consumer loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// DefaultHandlerRetry is how long a failing message is retried before the
// consumer gives up and stops.
func DefaultHandlerRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    6,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// NewConsumer joins the configured consumer group on topic. New groups start
// from the earliest offset so requests submitted before the first worker
// came up are still processed.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, handler, DefaultHandlerRetry(), topic)
}

func newConsumer(r messageReader, handler MessageHandler, retry resilience.RetryConfig, topic string) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   retry,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run fetches and handles messages one at a time until ctx is cancelled.
// A message whose handler still fails after the retries stops the consumer
// with an error and stays uncommitted, so the group redelivers it to the
// next worker instead of committing past it.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		log.Debug("message received", "key", string(msg.Key), "bytes", len(msg.Value))

		err = resilience.Retry(ctx, "handle message", c.retry, func(ctx context.Context) error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping, message left uncommitted", "reason", ctx.Err(), "offset", msg.Offset)
				return nil
			}
			log.Error("handler failed, stopping without commit", "error", err)
			return fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit failed", "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
