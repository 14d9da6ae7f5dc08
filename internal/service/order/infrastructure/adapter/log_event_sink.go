package adapter

import (
	"context"

	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

// LogEventSink 没有配置 kafka 时使用，只把事件写进日志
type LogEventSink struct{}

var _ port.EventSink = LogEventSink{}

func (LogEventSink) Emit(ctx context.Context, topic string, evt domain.Event) error {
	logger.Ctx(ctx).Info().
		Str("topic", topic).
		Str("event_type", evt.Kind.String()).
		Str("order_id", evt.OrderID).
		Str("user_id", evt.UserID).
		Time("occurred_at", evt.OccurredAt).
		Interface("detail", evt.Detail).
		Msg("📢 event published (log sink)")
	return nil
}
