// internal/service/order/application/service.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cloudretail/internal/service/order/application/saga"
	"cloudretail/internal/service/order/domain"
)

// OrderApplicationService 是订单用例的入口：写操作交给 saga 编排器，读操作直接查仓储。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	saga      *saga.Orchestrator
	tracer    trace.Tracer
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, orchestrator *saga.Orchestrator, tracer trace.Tracer) *OrderApplicationService {
	return &OrderApplicationService{orderRepo: orderRepo, saga: orchestrator, tracer: tracer}
}

// CreateOrder 同步执行下单 saga。失败时如果订单已经创建，也会返回该订单，便于调用方回显订单号。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.Int("items.count", len(req.Items)),
	)

	items, address := req.toDomain()
	order, err := s.saga.ExecuteOrderSaga(ctx, req.UserID, items, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order creation failed")
		return order, err
	}
	return order, nil
}

// CancelOrder 取消订单并返回取消后的订单
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if err := s.saga.CancelOrder(ctx, orderID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.orderRepo.FindByID(ctx, orderID)
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()
	return s.orderRepo.FindByID(ctx, orderID)
}

// ListUserOrders 按创建时间倒序分页
func (s *OrderApplicationService) ListUserOrders(ctx context.Context, userID string, page domain.Page) (*OrderPage, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListUserOrders", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	page = page.Normalize()
	orders, total, err := s.orderRepo.FindByUser(ctx, userID, page)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	limit := int64(page.Limit)
	return &OrderPage{
		Orders: orders,
		Pagination: Pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}
