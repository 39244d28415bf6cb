package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"signalbot/internal/config"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaChannel.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaChannel publishes events to a Kafka topic, keyed by event type.
type KafkaChannel struct {
	writer MessageWriter
	topic  string
}

// NewKafkaChannel creates a KafkaChannel writing to cfg.Topic.
func NewKafkaChannel(cfg config.KafkaConfig) (*KafkaChannel, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewKafkaChannelWithWriter(writer, cfg.Topic), nil
}

// NewKafkaChannelWithWriter wraps an existing writer.
func NewKafkaChannelWithWriter(w MessageWriter, topic string) *KafkaChannel {
	return &KafkaChannel{writer: w, topic: topic}
}

// Name returns the name of the channel.
func (k *KafkaChannel) Name() string { return "kafka" }

// IsEnabled returns whether the channel is enabled.
func (k *KafkaChannel) IsEnabled() bool { return k.writer != nil }

// Send writes the event as a JSON message.
func (k *KafkaChannel) Send(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Type),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaChannel) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
