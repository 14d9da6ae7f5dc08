package saga

import (
	"fmt"

	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

// ConfirmOrderHandler 是链上最后一步：确认订单并发布 order.confirmed
type ConfirmOrderHandler struct {
	NextHandler
	repo      domain.OrderRepository
	publisher port.EventPublisher
}

func NewConfirmOrderHandler(repo domain.OrderRepository, publisher port.EventPublisher) *ConfirmOrderHandler {
	return &ConfirmOrderHandler{repo: repo, publisher: publisher}
}

func (h *ConfirmOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ConfirmOrder")
	defer span.End()

	order := orderCtx.Order
	// 持久化失败时订单回到 payment_completed，补偿仍可退款
	if err := order.ApplyWith(domain.EvConfirmed, persistWith(ctx, h.repo)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to persist confirmed state: %w", err)
	}

	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("✅ order confirmed")
	h.publisher.Publish(ctx, domain.OrderConfirmed(order))

	return h.executeNext(orderCtx)
}
