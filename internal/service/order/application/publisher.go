package application

import (
	"context"

	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

// EventRecorder 记录事件发布结果，由 metrics.Collector 实现
type EventRecorder interface {
	EventPublished(kind string, ok bool)
}

type nopEventRecorder struct{}

func (nopEventRecorder) EventPublished(string, bool) {}

// EventPublisher 是尽力而为的事件发布器：按事件类型查路由表，交给 sink 投递。
// 所有错误（包括 sink 的 panic）都只记录日志，saga 的正确性不依赖事件投递。
type EventPublisher struct {
	sink     port.EventSink
	routes   map[domain.EventKind]string
	recorder EventRecorder
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher 为每个事件类型确定 topic：topics 中按事件名配置的优先，否则使用 defaultTopic。
func NewEventPublisher(sink port.EventSink, topics map[string]string, defaultTopic string, recorder EventRecorder) *EventPublisher {
	if recorder == nil {
		recorder = nopEventRecorder{}
	}
	routes := make(map[domain.EventKind]string, len(domain.EventKinds()))
	for _, kind := range domain.EventKinds() {
		topic := defaultTopic
		if t, ok := topics[kind.String()]; ok && t != "" {
			topic = t
		}
		routes[kind] = topic
	}
	return &EventPublisher{sink: sink, routes: routes, recorder: recorder}
}

// Route 返回事件类型对应的 topic
func (p *EventPublisher) Route(kind domain.EventKind) (string, bool) {
	topic, ok := p.routes[kind]
	return topic, ok
}

func (p *EventPublisher) Publish(ctx context.Context, evt domain.Event) {
	l := logger.Ctx(ctx).With().Str("event_type", evt.Kind.String()).Str("order_id", evt.OrderID).Logger()

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("event sink panicked, event dropped")
			p.recorder.EventPublished(evt.Kind.String(), false)
		}
	}()

	topic, ok := p.routes[evt.Kind]
	if !ok {
		l.Warn().Msg("no route for event kind, event dropped")
		p.recorder.EventPublished(evt.Kind.String(), false)
		return
	}

	if err := p.sink.Emit(ctx, topic, evt); err != nil {
		l.Error().Err(err).Str("topic", topic).Msg("Failed to publish event")
		p.recorder.EventPublished(evt.Kind.String(), false)
		return
	}
	p.recorder.EventPublished(evt.Kind.String(), true)
	l.Debug().Str("topic", topic).Msg("Event published")
}
