package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig selects the brokers and topic PostCreated events are written to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per PostCreated, keyed by post id.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous, all-acks producer for cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}, nil
}

// Publish implements DeliverFunc.
func (p *KafkaPublisher) Publish(ctx context.Context, ev postledger.PostCreated) error {
	value, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.ID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypePostCreated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
