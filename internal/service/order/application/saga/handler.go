package saga

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"cloudretail/internal/service/order/domain"
)

// OrderContext 在 Saga 流程中传递上下文数据。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Tracer trace.Tracer

	// reserved 记录库存服务已确认预占的订单行，部分预占失败时补偿只释放这些
	reserved []domain.OrderItem
	mu       sync.Mutex
}

func (c *OrderContext) markReserved(item domain.OrderItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserved = append(c.reserved, item)
}

// Reserved 返回已预占订单行的副本
func (c *OrderContext) Reserved() []domain.OrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.reserved)
}

func persistWith(ctx context.Context, repo domain.OrderRepository) func(*domain.Order) error {
	return func(o *domain.Order) error { return repo.UpdateState(ctx, o) }
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
