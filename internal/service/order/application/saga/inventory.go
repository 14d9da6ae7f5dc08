package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

// ReserveInventoryHandler 负责库存预占步骤。订单行逐个预占，不保证跨行原子性。
type ReserveInventoryHandler struct {
	NextHandler
	repo      domain.OrderRepository
	inventory port.InventoryService
	breaker   *breaker.Breaker
	publisher port.EventPublisher
}

func NewReserveInventoryHandler(repo domain.OrderRepository, inventory port.InventoryService, cb *breaker.Breaker, publisher port.EventPublisher) *ReserveInventoryHandler {
	return &ReserveInventoryHandler{repo: repo, inventory: inventory, breaker: cb, publisher: publisher}
}

func (h *ReserveInventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ReserveInventory")
	defer span.End()

	order := orderCtx.Order
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("items.count", len(order.Items)),
	)

	for _, item := range order.Items {
		err := h.breaker.Execute(ctx, func(ctx context.Context) error {
			return h.inventory.Reserve(ctx, order.ID, item)
		})
		if err != nil {
			err = classify(inventoryService, "reserve", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "Inventory reservation failed")
			logger.Ctx(ctx).Warn().Err(err).
				Str("order_id", order.ID).
				Str("product_id", item.ProductID).
				Int("reserved_so_far", len(orderCtx.Reserved())).
				Msg("inventory reservation failed")
			return err
		}
		orderCtx.markReserved(item)
	}

	if err := order.ApplyWith(domain.EvInventoryReserved, persistWith(ctx, h.repo)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to persist inventory_reserved state: %w", err)
	}
	span.AddEvent("All items reserved successfully")
	h.publisher.Publish(ctx, domain.InventoryReserved(order, order.Items))

	return h.executeNext(orderCtx)
}
