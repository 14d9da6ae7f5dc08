package port

import (
	"context"

	"cloudretail/internal/service/order/domain"
)

// EventPublisher 发布领域事件，尽力而为，从不向调用方返回错误
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event)
}

// EventSink 把事件投递到具体的传输通道（kafka、日志）
type EventSink interface {
	Emit(ctx context.Context, topic string, evt domain.Event) error
}
