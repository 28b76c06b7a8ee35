package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/order-core/internal/metrics"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/fjod/go_cart/order-core/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const batchSize = 100

type OutboxReader interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	repo      OutboxReader
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(repo OutboxReader, writer MessageWriter, m *metrics.Metrics, log logrus.FieldLogger) *OutboxPoller {
	p := &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		repo:      repo,
		writer:    writer,
		metrics:   m,
		log:       log,
	}
	p.breaker = circuitbreaker.New(circuitbreaker.Settings{
		Name:        "outbox-kafka",
		MaxFailures: 5,
		OpenTimeout: 15 * time.Second,
		OnStateChange: func(name, from, to string) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("circuit breaker state changed")
		},
	})
	return p
}

// Run publishes pending events every tick until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.eventTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.WithError(err).Error("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		entry := p.log.WithFields(logrus.Fields{
			"event_id":   event.EventID.String(),
			"event_type": event.EventType,
		})

		if err := p.publish(ctx, event); err != nil {
			if circuitbreaker.IsOpen(err) {
				p.metrics.ObservePublish("breaker_open")
				entry.Warn("broker unavailable, publishing paused")
				return
			}
			p.metrics.ObservePublish("error")
			entry.WithError(err).Warn("failed to publish outbox event")
			// keep per-aggregate order: later events wait for the next tick
			return
		}
		p.metrics.ObservePublish("success")

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			entry.WithError(err).Error("failed to mark outbox event as processed")
			return
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.breaker.Do(func() error {
		return p.writer.WriteMessages(writeCtx, msg)
	})
}
