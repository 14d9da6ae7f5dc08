package saga

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/pkg/metrics"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

const defaultCompensationTimeout = 5 * time.Second

// Recorder 接收 saga 结果，由 metrics.Collector 实现
type Recorder interface {
	SagaFinished(outcome string)
	CompensationStep(step, result string)
}

type nopRecorder struct{}

func (nopRecorder) SagaFinished(string)             {}
func (nopRecorder) CompensationStep(string, string) {}

// Dependencies 是编排器的全部依赖，熔断器由启动代码从 Registry 中取出后注入
type Dependencies struct {
	Repo             domain.OrderRepository
	Inventory        port.InventoryService
	Payment          port.PaymentService
	Publisher        port.EventPublisher
	InventoryBreaker *breaker.Breaker
	PaymentBreaker   *breaker.Breaker
	Tracer           trace.Tracer
	Recorder         Recorder
	// CompensationTimeout 是补偿阶段每次释放/退款调用的超时
	CompensationTimeout time.Duration
}

// Orchestrator 驱动下单 saga：创建订单、预占库存、扣款、确认，失败时执行补偿。
type Orchestrator struct {
	repo             domain.OrderRepository
	inventory        port.InventoryService
	payment          port.PaymentService
	publisher        port.EventPublisher
	inventoryBreaker *breaker.Breaker
	paymentBreaker   *breaker.Breaker
	tracer           trace.Tracer
	recorder         Recorder

	compensationTimeout time.Duration

	// inFlight 记录本进程内正在执行 saga 或补偿的订单，同一订单同一时刻只有一个执行者
	inFlight sync.Map
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("saga")
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.CompensationTimeout <= 0 {
		deps.CompensationTimeout = defaultCompensationTimeout
	}
	return &Orchestrator{
		repo:                deps.Repo,
		inventory:           deps.Inventory,
		payment:             deps.Payment,
		publisher:           deps.Publisher,
		inventoryBreaker:    deps.InventoryBreaker,
		paymentBreaker:      deps.PaymentBreaker,
		tracer:              deps.Tracer,
		recorder:            deps.Recorder,
		compensationTimeout: deps.CompensationTimeout,
	}
}

func (o *Orchestrator) buildChain() Handler {
	chain := NewReserveInventoryHandler(o.repo, o.inventory, o.inventoryBreaker, o.publisher)
	chain.
		SetNext(NewProcessPaymentHandler(o.repo, o.payment, o.paymentBreaker, o.publisher)).
		SetNext(NewConfirmOrderHandler(o.repo, o.publisher))
	return chain
}

// ExecuteOrderSaga 执行完整的下单流程。
// 订单一旦创建就不会被删除：失败时返回的 order 处于 cancelled/failed 状态，error 是最早的触发原因。
// 校验失败或订单创建失败时 order 为 nil。
func (o *Orchestrator) ExecuteOrderSaga(ctx context.Context, userID string, items []domain.OrderItem, address domain.ShippingAddress) (*domain.Order, error) {
	// saga 不响应外部取消，调用方断开连接也要走完或补偿
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, "saga.ExecuteOrderSaga")
	defer span.End()

	order, err := domain.NewOrder(userID, items, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid order")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("user.id", userID),
	)

	o.inFlight.Store(order.ID, struct{}{})
	defer o.inFlight.Delete(order.ID)

	if err := o.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create order")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to create order")
		o.recorder.SagaFinished(metrics.SagaFailed)
		return nil, err
	}

	l := logger.Ctx(ctx).With().Str("order_id", order.ID).Logger()
	l.Info().Str("user_id", userID).Str("total", order.TotalAmount.StringFixed(2)).Msg("Starting order saga")

	orderCtx := &OrderContext{Ctx: ctx, Order: order, Tracer: o.tracer}
	if err := o.buildChain().Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order saga failed")
		l.Error().Err(err).Str("saga_state", string(order.SagaState)).Msg("Saga failed, starting compensation")

		if compErr := o.compensate(ctx, order, err, orderCtx.Reserved()); compErr != nil {
			o.recorder.SagaFinished(metrics.SagaFailed)
		} else {
			o.recorder.SagaFinished(metrics.SagaCompensated)
		}
		return order, err
	}

	o.recorder.SagaFinished(metrics.SagaCompleted)
	l.Info().Msg("✅ Order saga completed")
	return order, nil
}

// CancelOrder 由用户取消订单，走与失败相同的补偿路径。
// 已失败的订单重复取消是空操作；正在本进程内执行 saga 的订单不允许取消。
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) error {
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, "saga.CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if _, busy := o.inFlight.LoadOrStore(orderID, struct{}{}); busy {
		return domain.ErrNotCancellable
	}
	defer o.inFlight.Delete(orderID)

	order, err := o.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.SagaState == domain.SagaFailed {
		logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("order already failed, cancel is a no-op")
		return nil
	}
	// compensating 只会出现在补偿中途退出的订单上，取消即续做补偿
	if order.SagaState != domain.SagaCompensating && (!order.Cancellable() || order.IsTerminal()) {
		return domain.ErrNotCancellable
	}

	logger.Ctx(ctx).Info().Str("order_id", orderID).Str("status", string(order.Status)).Msg("Cancelling order")
	if err := o.compensate(ctx, order, errors.New("user cancelled"), nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Cancel compensation failed")
		return err
	}
	return nil
}

// InFlight 订单当前是否有 saga 或补偿在本进程执行
func (o *Orchestrator) InFlight(orderID string) bool {
	_, ok := o.inFlight.Load(orderID)
	return ok
}
