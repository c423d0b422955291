package main

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/postledger/internal/events"
	"github.com/jmerrifield20/postledger/internal/handler"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/jmerrifield20/postledger/internal/webhooks"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// sinkSet tracks the queues and clients started by startSinks.
type sinkSet struct {
	logger  *zap.Logger
	queues  []*events.Queue
	closers []func() error
}

// startSinks subscribes the metrics counter, the WebSocket hub and every
// configured network sink to ledger.
func startSinks(ctx context.Context, ledger postledger.Ledger, hub *events.Hub, logger *zap.Logger) (*sinkSet, error) {
	s := &sinkSet{logger: logger}
	size := viper.GetInt("events.queue_size")

	ledger.Subscribe(handler.PostMetrics)
	ledger.Subscribe(hub)

	if urls := viper.GetStringSlice("events.webhook_urls"); len(urls) > 0 {
		d := webhooks.NewDispatcher(urls, viper.GetString("events.webhook_secret"), logger)
		d.SetDeliveryRecorder(handler.RecordWebhookDelivery)
		s.add(ledger, events.NewQueue("webhooks", size, d.Deliver, logger), nil)
		logger.Info("webhook sink enabled", zap.Int("endpoints", len(urls)))
	}

	if brokers := viper.GetStringSlice("events.kafka_brokers"); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: brokers,
			Topic:   viper.GetString("events.kafka_topic"),
		})
		if err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		s.add(ledger, events.NewQueue("kafka", size, kp.Publish, logger), kp.Close)
		logger.Info("kafka sink enabled", zap.Strings("brokers", brokers))
	}

	if addr := viper.GetString("events.redis_addr"); addr != "" {
		rp, err := events.NewRedisPublisher(ctx, addr,
			viper.GetString("events.redis_password"),
			viper.GetString("events.redis_channel"))
		if err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		s.add(ledger, events.NewQueue("redis", size, rp.Publish, logger), rp.Close)
		logger.Info("redis sink enabled", zap.String("addr", addr))
	}

	return s, nil
}

func (s *sinkSet) add(ledger postledger.Ledger, q *events.Queue, closer func() error) {
	q.SetMetricsRecorder(handler.RecordSinkOutcome)
	ledger.Subscribe(q)
	s.queues = append(s.queues, q)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// close drains every queue, then releases the sink clients.
func (s *sinkSet) close(ctx context.Context) {
	for _, q := range s.queues {
		if err := q.Close(ctx); err != nil {
			s.logger.Warn("sink queue not drained", zap.Error(err))
		}
	}
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.logger.Warn("close sink", zap.Error(err))
		}
	}
}
