package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domainEvent "github.com/attractive-boy/schoolbus-back/internal/domain/event"
	"github.com/attractive-boy/schoolbus-back/internal/domain/outbox"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOutbox struct {
	mu        sync.Mutex
	pending   []*outbox.Event
	processed []string
	failed    []string
	requeued  int
}

func (m *memOutbox) FetchBatch(_ context.Context, limit int) ([]*outbox.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.pending) {
		limit = len(m.pending)
	}
	batch := m.pending[:limit]
	m.pending = m.pending[limit:]
	return batch, nil
}

func (m *memOutbox) MarkProcessed(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, ids...)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, ids...)
	return nil
}

func (m *memOutbox) RequeueStuck(context.Context, time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued++
	return 0, nil
}

type sentMessage struct {
	key     string
	value   []byte
	headers []kafka.Header
}

type fakeProducer struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]bool
}

func (p *fakeProducer) SendMessage(_ context.Context, key, value []byte, headers ...kafka.Header) error {
	var msg domainEvent.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	if p.failOn[msg.ID] {
		return errors.New("broker unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{key: string(key), value: value, headers: headers})
	return nil
}

func (p *fakeProducer) GetTopic() string { return "schoolbus-events" }

func newEvent(id, typ, correlationID string) *outbox.Event {
	return &outbox.Event{
		ID:            id,
		EventType:     typ,
		Payload:       []byte(`{"order_no":"ORDER1"}`),
		Status:        outbox.StatusProcessing,
		CorrelationID: correlationID,
		Producer:      domainEvent.ProducerOrders,
		CreatedAt:     time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestProcessBatchPublishesEnvelopes(t *testing.T) {
	repo := &memOutbox{pending: []*outbox.Event{
		newEvent("e1", domainEvent.TypeOrderCreated, "o1"),
		newEvent("e2", domainEvent.TypeOrderPaid, "o1"),
		newEvent("e3", domainEvent.TypeTicketVerified, ""),
	}}
	prod := &fakeProducer{}
	p := NewOutboxPoller(repo, prod, Config{BatchSize: 10})

	require.NoError(t, p.processBatch(context.Background()))

	require.Len(t, prod.sent, 3)
	assert.Equal(t, "o1", prod.sent[0].key)
	assert.Equal(t, "o1", prod.sent[1].key)
	assert.Equal(t, "e3", prod.sent[2].key, "falls back to the event id")
	assert.Equal(t, []kafka.Header{{Key: "event-type", Value: []byte(domainEvent.TypeOrderPaid)}}, prod.sent[1].headers)

	var msg domainEvent.Message
	require.NoError(t, json.Unmarshal(prod.sent[1].value, &msg))
	assert.Equal(t, "e2", msg.ID)
	assert.Equal(t, domainEvent.TypeOrderPaid, msg.Type)
	assert.Equal(t, domainEvent.ProducerOrders, msg.Producer)
	assert.JSONEq(t, `{"order_no":"ORDER1"}`, string(msg.Payload))
	assert.True(t, msg.OccurredAt.Equal(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)))

	assert.Equal(t, []string{"e1", "e2", "e3"}, repo.processed)
	assert.Empty(t, repo.failed)
}

func TestProcessBatchReturnsFailuresToQueue(t *testing.T) {
	repo := &memOutbox{pending: []*outbox.Event{
		newEvent("e1", domainEvent.TypeOrderCreated, "o1"),
		newEvent("e2", domainEvent.TypeOrderPaid, "o1"),
	}}
	prod := &fakeProducer{failOn: map[string]bool{"e1": true}}
	p := NewOutboxPoller(repo, prod, Config{})

	require.NoError(t, p.processBatch(context.Background()))

	assert.Equal(t, []string{"e2"}, repo.processed)
	assert.Equal(t, []string{"e1"}, repo.failed)
}

func TestProcessBatchHonoursBatchSize(t *testing.T) {
	repo := &memOutbox{}
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		repo.pending = append(repo.pending, newEvent(id, domainEvent.TypeOrderCreated, "o1"))
	}
	p := NewOutboxPoller(repo, &fakeProducer{}, Config{BatchSize: 2})

	require.NoError(t, p.processBatch(context.Background()))
	assert.Len(t, repo.processed, 2)
	assert.Len(t, repo.pending, 3)
}

func TestRunDrainsAndStops(t *testing.T) {
	repo := &memOutbox{pending: []*outbox.Event{newEvent("e1", domainEvent.TypeOrderCreated, "o1")}}
	prod := &fakeProducer{}
	p := NewOutboxPoller(repo, prod, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.processed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.GreaterOrEqual(t, repo.requeued, 1, "stuck rows are swept on start")
}
