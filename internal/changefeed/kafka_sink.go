package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
)

// MessageWriter is the part of kafka.Writer the sink depends on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes change events to a Kafka topic. Messages are keyed by
// document ID (or table for table-level events) so one document's changes
// stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	closed atomic.Bool
}

// NewKafkaSink creates a synchronous producer for cfg.Topic.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	log.Printf("[KAFKA] Change feed producer ready (brokers: %v, topic: %s)", cfg.Brokers, cfg.Topic)
	return NewKafkaSinkFromWriter(writer, cfg.Topic), nil
}

// NewKafkaSinkFromWriter wraps an existing writer.
func NewKafkaSinkFromWriter(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Publish writes the events as one batch.
func (s *KafkaSink) Publish(ctx context.Context, events ...*core.ChangeEvent) error {
	if s.closed.Load() {
		return fmt.Errorf("kafka sink is closed")
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := toMessage(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d message(s) to Kafka topic %s: %w", len(msgs), s.topic, err)
	}
	return nil
}

func toMessage(event *core.ChangeEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal change event: %w", err)
	}
	key := event.DocumentID
	if key == "" {
		key = event.Table
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "table", Value: []byte(event.Table)},
		},
	}, nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.writer.Close()
}

// LogSink writes change events to the standard logger.
type LogSink struct{}

// Publish logs one line per event.
func (LogSink) Publish(_ context.Context, events ...*core.ChangeEvent) error {
	for _, e := range events {
		log.Printf("[CHANGEFEED] %s %s id=%s event=%s", e.Operation, e.Table, e.DocumentID, e.ID)
	}
	return nil
}

// Close is a no-op.
func (LogSink) Close() error { return nil }
