package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudretail/internal/service/order/domain"
)

type emitted struct {
	topic string
	kind  domain.EventKind
}

type stubSink struct {
	mu     sync.Mutex
	events []emitted
	err    error
	panic  bool
}

func (s *stubSink) Emit(_ context.Context, topic string, evt domain.Event) error {
	if s.panic {
		panic("sink exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emitted{topic: topic, kind: evt.Kind})
	return nil
}

type publishCounts struct {
	mu     sync.Mutex
	ok     map[string]int
	failed map[string]int
}

func newPublishCounts() *publishCounts {
	return &publishCounts{ok: map[string]int{}, failed: map[string]int{}}
}

func (c *publishCounts) EventPublished(kind string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.ok[kind]++
	} else {
		c.failed[kind]++
	}
}

var testOrder = &domain.Order{ID: "o-1", UserID: "u-1"}

func TestEventPublisher_Routing(t *testing.T) {
	sink := &stubSink{}
	p := NewEventPublisher(sink, map[string]string{
		"order.confirmed": "order-events",
		"order.failed":    "order-events",
	}, "saga-events", nil)

	for _, kind := range domain.EventKinds() {
		topic, ok := p.Route(kind)
		require.True(t, ok, kind.String())
		if kind == domain.EventOrderConfirmed || kind == domain.EventOrderFailed {
			assert.Equal(t, "order-events", topic)
		} else {
			assert.Equal(t, "saga-events", topic)
		}
	}

	p.Publish(t.Context(), domain.OrderConfirmed(testOrder))
	p.Publish(t.Context(), domain.PaymentRefunded(testOrder))

	assert.Equal(t, []emitted{
		{topic: "order-events", kind: domain.EventOrderConfirmed},
		{topic: "saga-events", kind: domain.EventPaymentRefunded},
	}, sink.events)
}

func TestEventPublisher_SwallowsSinkFailures(t *testing.T) {
	tests := []struct {
		name string
		sink *stubSink
	}{
		{"error", &stubSink{err: errors.New("broker down")}},
		{"panic", &stubSink{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := newPublishCounts()
			p := NewEventPublisher(tt.sink, nil, "orders", counts)

			assert.NotPanics(t, func() {
				p.Publish(t.Context(), domain.OrderFailed(testOrder, "payment declined"))
			})
			assert.Equal(t, 1, counts.failed["order.failed"])
			assert.Zero(t, counts.ok["order.failed"])
		})
	}
}

func TestEventPublisher_UnknownKindDropped(t *testing.T) {
	sink := &stubSink{}
	counts := newPublishCounts()
	p := NewEventPublisher(sink, nil, "orders", counts)

	p.Publish(t.Context(), domain.Event{Kind: domain.EventKind(99), OrderID: "o-1"})

	assert.Empty(t, sink.events)
	assert.Equal(t, 1, counts.failed["unknown"])
}
