// Package worker relays committed outbox rows to Kafka.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_events_published_total",
		Help: "The total number of events published to Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
	eventsRequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_events_requeued_total",
		Help: "Events returned to new after being stuck in processing",
	})
)

type OutboxQueue interface {
	FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error)
	MarkProcessed(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Publisher interface {
	SendMessage(ctx context.Context, key, value []byte, headers ...kafka.Header) error
	GetTopic() string
}

// Config tunes the poller. StuckAfter is how long a claimed row may stay in
// processing before it is handed out again.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	StuckAfter   time.Duration
	SendTimeout  time.Duration
}

type OutboxPoller struct {
	outboxRepo OutboxQueue
	kafkaProd  Publisher
	cfg        Config
}

func NewOutboxPoller(outboxRepo OutboxQueue, kafkaProd Publisher, cfg Config) *OutboxPoller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = 5 * time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &OutboxPoller{
		outboxRepo: outboxRepo,
		kafkaProd:  kafkaProd,
		cfg:        cfg,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	sweep := time.NewTicker(p.cfg.StuckAfter)
	defer sweep.Stop()

	log.Printf("OutboxPoller started (Topic: %s, batch: %d, interval: %s)", p.kafkaProd.GetTopic(), p.cfg.BatchSize, p.cfg.PollInterval)
	p.requeue(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep.C:
			p.requeue(ctx)
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				log.Printf("failed to process batch: %v", err)
			}
		}
	}
}

func (p *OutboxPoller) requeue(ctx context.Context) {
	n, err := p.outboxRepo.RequeueStuck(ctx, p.cfg.StuckAfter)
	if err != nil {
		log.Printf("failed to requeue stuck events: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Requeued %d stuck events", n)
		eventsRequeued.Add(float64(n))
	}
}

func (p *OutboxPoller) processBatch(ctx context.Context) error {
	events, err := p.outboxRepo.FetchBatch(ctx, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	var processedIDs []string
	var failedIDs []string

	for _, e := range events {
		key := []byte(e.CorrelationID)
		if len(key) == 0 {
			key = []byte(e.ID)
		}

		value, err := json.Marshal(e.Envelope())
		if err != nil {
			log.Printf("failed to marshal event %s: %v", e.ID, err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		err = p.kafkaProd.SendMessage(sendCtx, key, value, kafka.Header{Key: "event-type", Value: []byte(e.EventType)})
		cancel()

		if err != nil {
			log.Printf("failed to send event %s (%s) to kafka: %v", e.ID, e.EventType, err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		eventsPublished.Inc()
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if err := p.outboxRepo.MarkProcessed(ctx, processedIDs); err != nil {
			return err
		}
		log.Printf("Published %d events", len(processedIDs))
	}

	if len(failedIDs) > 0 {
		if err := p.outboxRepo.MarkFailed(ctx, failedIDs); err != nil {
			log.Printf("failed to mark events as failed: %v", err)
		}
	}

	return nil
}
