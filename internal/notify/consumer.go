package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolbus_notifier_events_total",
		Help: "Events seen by the notifier by type and outcome",
	}, []string{"type", "outcome"})
	handleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "schoolbus_notifier_handle_duration_seconds",
		Help:    "Time taken to deliver notifications for one event",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Inbox records event ids this consumer has already taken.
type Inbox interface {
	SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error)
}

type Consumer struct {
	name       string
	source     MessageSource
	inbox      Inbox
	dispatcher *Dispatcher

	maxRetries int
	backoff    time.Duration
}

func NewConsumer(name string, source MessageSource, inbox Inbox, dispatcher *Dispatcher) *Consumer {
	return &Consumer{
		name:       name,
		source:     source,
		inbox:      inbox,
		dispatcher: dispatcher,
		maxRetries: 5,
		backoff:    time.Second,
	}
}

// Run consumes until ctx is cancelled. Every fetched message is committed
// once handled, whether or not delivery succeeded.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("notifier started", "consumer", c.name)
	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		for attempt := 0; ; attempt++ {
			err := c.handle(ctx, msg)
			if err == nil {
				break
			}
			// Only the inbox write fails here; delivery errors are swallowed.
			slog.Error("failed to record event in inbox", "offset", msg.Offset, "attempt", attempt, "error", err)
			if attempt == c.maxRetries {
				slog.Error("dropping message after retries", "offset", msg.Offset, "retries", c.maxRetries)
				break
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(1<<attempt) * c.backoff):
			}
		}
		if err := c.source.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit kafka message", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := event.Decode(msg.Value)
	if err != nil {
		// Not our envelope (or corrupt). Commit and move on.
		slog.Error("failed to unmarshal event envelope", "error", err)
		eventsHandled.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	if !c.dispatcher.Handles(ev.Type) {
		eventsHandled.WithLabelValues(ev.Type, "ignored").Inc()
		return nil
	}

	isNew, err := c.inbox.SaveIfNotExists(ctx, c.name, ev.ID, ev.Type, ev.CorrelationID)
	if err != nil {
		return err
	}
	if !isNew {
		eventsHandled.WithLabelValues(ev.Type, "duplicate").Inc()
		return nil
	}

	started := time.Now()
	err = c.dispatcher.Dispatch(ctx, ev)
	handleDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		slog.Error("notification delivery failed", "type", ev.Type, "event_id", ev.ID, "correlation_id", ev.CorrelationID, "error", err)
		eventsHandled.WithLabelValues(ev.Type, "failed").Inc()
		return nil
	}

	eventsHandled.WithLabelValues(ev.Type, "delivered").Inc()
	slog.Info("notifications delivered", "type", ev.Type, "event_id", ev.ID, "correlation_id", ev.CorrelationID)
	return nil
}
