package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/pkg/metrics"
	"cloudretail/internal/service/order/domain"
)

const (
	stepReleaseInventory = "release_inventory"
	stepRefundPayment    = "refund_payment"
	stepPersistState     = "persist_state"
)

// compensate 撤销已完成的步骤。
//
// 释放和退款都是尽力而为，失败只记录日志不重试，也不中断后续步骤。
// compensating 状态必须先落库成功，否则整个补偿失败并返回 *domain.CompensationFailure。
// reserved 是正向流程确认预占的订单行，只在库存步骤中途失败时使用。
// 订单已处于 compensating（上次补偿中途退出）时从头续做，释放和退款在下游都是幂等的。
func (o *Orchestrator) compensate(ctx context.Context, order *domain.Order, cause error, reserved []domain.OrderItem) (err error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, "saga.Compensate")
	defer span.End()

	l := logger.Ctx(ctx).With().Str("order_id", order.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = o.compensationFailed(ctx, order, fmt.Errorf("panic during compensation: %v", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Compensation failed")
		}
	}()

	prior := order.SagaState
	span.SetAttributes(attribute.String("saga.prior_state", string(prior)))

	resuming := prior == domain.SagaCompensating
	if resuming {
		l.Warn().Msg("Resuming interrupted compensation")
	} else if err := order.ApplyWith(domain.EvCompensationStarted, persistWith(ctx, o.repo)); err != nil {
		o.recorder.CompensationStep(stepPersistState, metrics.CompensationFailed)
		return o.compensationFailed(ctx, order, fmt.Errorf("persist compensating state: %w", err))
	}

	toRelease := reserved
	if resuming || prior == domain.SagaInventoryReserved || prior == domain.SagaPaymentProcessing {
		toRelease = order.Items
	}
	if released := o.releaseInventory(ctx, order, toRelease); len(released) > 0 {
		o.publisher.Publish(ctx, domain.InventoryReleased(order, released))
	}

	if order.HasPayment() {
		o.refundPayment(ctx, order)
	}

	if err := order.ApplyWith(domain.EvCompensated, persistWith(ctx, o.repo)); err != nil {
		o.recorder.CompensationStep(stepPersistState, metrics.CompensationFailed)
		return o.compensationFailed(ctx, order, fmt.Errorf("persist failed state: %w", err))
	}

	o.publisher.Publish(ctx, domain.OrderFailed(order, cause.Error()))
	l.Info().Str("reason", cause.Error()).Msg("Compensation finished, order cancelled")
	return nil
}

// releaseInventory 逐行释放库存，返回释放成功的订单行
func (o *Orchestrator) releaseInventory(ctx context.Context, order *domain.Order, items []domain.OrderItem) []domain.OrderItem {
	released := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		callCtx, cancel := context.WithTimeout(ctx, o.compensationTimeout)
		err := o.inventory.Release(callCtx, order.ID, item)
		cancel()

		if err != nil {
			o.recorder.CompensationStep(stepReleaseInventory, metrics.CompensationFailed)
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("failed to release inventory, manual reconciliation required")
			continue
		}
		o.recorder.CompensationStep(stepReleaseInventory, metrics.CompensationOK)
		released = append(released, item)
	}
	return released
}

func (o *Orchestrator) refundPayment(ctx context.Context, order *domain.Order) {
	callCtx, cancel := context.WithTimeout(ctx, o.compensationTimeout)
	defer cancel()

	if err := o.payment.Refund(callCtx, *order.PaymentID, order.ID); err != nil {
		o.recorder.CompensationStep(stepRefundPayment, metrics.CompensationFailed)
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID).
			Str("payment_id", *order.PaymentID).
			Msg("failed to refund payment, manual reconciliation required")
		return
	}
	o.recorder.CompensationStep(stepRefundPayment, metrics.CompensationOK)
	o.publisher.Publish(ctx, domain.PaymentRefunded(order))
}

// compensationFailed 是唯一需要人工介入的情况
func (o *Orchestrator) compensationFailed(ctx context.Context, order *domain.Order, err error) error {
	failure := &domain.CompensationFailure{OrderID: order.ID, Err: err}
	logger.Ctx(ctx).Error().Err(err).
		Str("order_id", order.ID).
		Str("saga_state", string(order.SagaState)).
		Bool("manual_intervention", true).
		Msg("COMPENSATION FAILURE")
	return failure
}
