package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/circuitbreaker"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/internal/metrics"
	"github.com/fjod/go_cart/fulfillment-service/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic     = "fulfillment-orders"
	defaultBatchSize = 100
)

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
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

// OutboxPoller relays committed outbox events to the broker. Events are
// published in id order and marked processed only after the write succeeds,
// so delivery is at least once.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	batchSize int
	outbox    repository.Outbox
	writer    MessageWriter
	breaker   *circuitbreaker.Breaker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

type Option func(*OutboxPoller)

func WithInterval(d time.Duration) Option {
	return func(p *OutboxPoller) {
		if d > 0 {
			p.eventTick = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *OutboxPoller) { p.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *OutboxPoller) { p.logger = l }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(p *OutboxPoller) { p.breaker = b }
}

func NewOutboxPoller(outbox repository.Outbox, writer MessageWriter, opts ...Option) *OutboxPoller {
	p := &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		batchSize: defaultBatchSize,
		outbox:    outbox,
		writer:    writer,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuitbreaker.New(circuitbreaker.DefaultConfig("outbox-kafka"), p.logger)
	}
	return p
}

// Run polls until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and closes the writer.
func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.outbox.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			if circuitbreaker.IsOpen(err) {
				p.metrics.OutboxPublished("breaker_open")
				p.logger.Warn().Msg("broker circuit open, pausing outbox relay")
			} else {
				p.metrics.OutboxPublished("error")
				p.logger.Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			}
			// later events of the same order must not overtake this one
			return published
		}

		if err := p.outbox.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event as processed")
			return published
		}

		p.metrics.OutboxPublished("success")
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}

	return p.breaker.Do(func() error {
		writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.writer.WriteMessages(writeCtx, msg)
	})
}
