package events

import (
	"context"
	"time"

	"github.com/boutique/storefront/internal/journal"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const DefaultTopic = "checkout-events"

// EventStore is the outbox side of the checkout journal.
type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*journal.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	purgeTick time.Duration
	retention time.Duration
	batchSize int
	repo      EventStore
	writer    MessageWriter
	log       logrus.FieldLogger
}

func NewOutboxPoller(repo EventStore, log logrus.FieldLogger, topic string, brokers ...string) *OutboxPoller {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newPoller(repo, w, log)
}

func newPoller(repo EventStore, w MessageWriter, log logrus.FieldLogger) *OutboxPoller {
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		purgeTick: time.Hour,
		retention: 7 * 24 * time.Hour,
		batchSize: 100,
		repo:      repo,
		writer:    w,
		log:       log.WithField("component", "outbox_poller"),
	}
}

// Run polls until ctx is done, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	purgeTicker := time.NewTicker(p.purgeTick)
	defer eventTicker.Stop()
	defer purgeTicker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.log.WithError(err).Warn("failed to close kafka writer")
		}
	}()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-purgeTicker.C:
			p.purgeProcessed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.WithError(err).Error("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if errPublish := p.publishToKafka(ctx, event); errPublish != nil {
			p.log.WithError(errPublish).WithField("event_id", event.ID).Warn("failed to publish event")
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			p.log.WithError(errMark).WithField("event_id", event.ID).Warn("failed to mark event as processed")
			continue
		}
	}
}

func (p *OutboxPoller) purgeProcessed(ctx context.Context) {
	n, err := p.repo.PurgeProcessedEvents(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.WithError(err).Warn("failed to purge processed events")
		return
	}
	if n > 0 {
		p.log.WithField("purged", n).Info("purged processed outbox events")
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *journal.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}
