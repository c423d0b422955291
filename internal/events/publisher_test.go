package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type stubKafkaWriter struct {
	msgs []kafka.Message
}

func (w *stubKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubKafkaWriter) Close() error { return nil }

type stubRedis struct {
	channel string
	payload []byte
}

func (r *stubRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	r.channel = channel
	r.payload = message.([]byte)
	return redis.NewIntResult(1, nil)
}

func (r *stubRedis) Close() error { return nil }

var sampleEvent = postledger.PostCreated{
	ID:         3,
	Title:      "Post Gamma",
	ContentRef: "hash_gamma",
	Author:     "0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
	CreatedAt:  1_700_000_000,
}

func TestKafkaPublisher_keysByID(t *testing.T) {
	w := &stubKafkaWriter{}
	p := &KafkaPublisher{writer: w}

	if err := p.Publish(context.Background(), sampleEvent); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "3" {
		t.Errorf("key: got %q, want 3", msg.Key)
	}
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.Data != sampleEvent {
		t.Errorf("payload: got %+v", env.Data)
	}
}

func TestNewKafkaPublisher_requiresTopic(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}
}

func TestRedisPublisher_publishesEnvelope(t *testing.T) {
	stub := &stubRedis{}
	p := &RedisPublisher{client: stub, channel: "posts"}

	if err := p.Publish(context.Background(), sampleEvent); err != nil {
		t.Fatal(err)
	}
	if stub.channel != "posts" {
		t.Errorf("channel: got %q", stub.channel)
	}
	var env Envelope
	if err := json.Unmarshal(stub.payload, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypePostCreated || env.Data != sampleEvent {
		t.Errorf("unexpected envelope: %+v", env)
	}
}
