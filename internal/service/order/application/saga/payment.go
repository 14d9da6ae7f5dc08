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

// ProcessPaymentHandler 负责扣款步骤。
type ProcessPaymentHandler struct {
	NextHandler
	repo      domain.OrderRepository
	payment   port.PaymentService
	breaker   *breaker.Breaker
	publisher port.EventPublisher
}

func NewProcessPaymentHandler(repo domain.OrderRepository, payment port.PaymentService, cb *breaker.Breaker, publisher port.EventPublisher) *ProcessPaymentHandler {
	return &ProcessPaymentHandler{repo: repo, payment: payment, breaker: cb, publisher: publisher}
}

func (h *ProcessPaymentHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ProcessPayment")
	defer span.End()

	order := orderCtx.Order
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.amount", order.TotalAmount.StringFixed(2)),
	)

	// 先持久化 payment_processing，再发起扣款
	if err := order.ApplyWith(domain.EvPaymentStarted, persistWith(ctx, h.repo)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to persist payment_processing state: %w", err)
	}

	paymentID, err := breaker.Call(ctx, h.breaker, func(ctx context.Context) (string, error) {
		return h.payment.Process(ctx, order.ID, order.UserID, order.TotalAmount)
	})
	if err != nil {
		err = classify(paymentService, "process", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Payment failed")
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("payment processing failed")
		return err
	}

	// RecordPayment 之后即使持久化失败，内存里的 paymentId 也会让补偿发起退款
	if err := order.RecordPayment(paymentID); err != nil {
		return err
	}
	if err := h.repo.UpdateState(ctx, order); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to persist payment result: %w", err)
	}
	span.SetAttributes(attribute.String("payment.id", paymentID))
	h.publisher.Publish(ctx, domain.PaymentCompleted(order))

	return h.executeNext(orderCtx)
}
