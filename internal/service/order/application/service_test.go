package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/service/order/application/saga"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/infrastructure"
)

type okInventory struct {
	mu       sync.Mutex
	reserved map[string]int
}

func (i *okInventory) Reserve(_ context.Context, _ string, item domain.OrderItem) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reserved[item.ProductID] += item.Quantity
	return nil
}

func (i *okInventory) Release(_ context.Context, _ string, item domain.OrderItem) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reserved[item.ProductID] -= item.Quantity
	return nil
}

type okPayment struct{}

func (okPayment) Process(context.Context, string, string, decimal.Decimal) (string, error) {
	return "pay-" + uuid.NewString(), nil
}

func (okPayment) Refund(context.Context, string, string) error { return nil }

func newTestService(t *testing.T, sink *stubSink) (*OrderApplicationService, *okInventory) {
	t.Helper()
	registry := breaker.NewRegistry(nil)
	invCB, err := registry.Register(breaker.Settings{Name: "inventory-service", IsBusinessError: domain.IsBusinessRejection})
	require.NoError(t, err)
	payCB, err := registry.Register(breaker.Settings{Name: "payment-service", IsBusinessError: domain.IsBusinessRejection})
	require.NoError(t, err)

	repo := infrastructure.NewMemoryOrderRepository()
	inventory := &okInventory{reserved: map[string]int{}}
	tracer := noop.NewTracerProvider().Tracer("test")

	orchestrator := saga.NewOrchestrator(saga.Dependencies{
		Repo:             repo,
		Inventory:        inventory,
		Payment:          okPayment{},
		Publisher:        NewEventPublisher(sink, nil, "orders", nil),
		InventoryBreaker: invCB,
		PaymentBreaker:   payCB,
		Tracer:           tracer,
	})
	return NewOrderApplicationService(repo, orchestrator, tracer), inventory
}

func validRequest(userID string) *CreateOrderRequest {
	return &CreateOrderRequest{
		UserID: userID,
		Items: []OrderItemRequest{
			{ProductID: uuid.NewString(), Quantity: 2, Price: decimal.RequireFromString("10.50")},
			{ProductID: uuid.NewString(), Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
		ShippingAddress: &ShippingAddressRequest{Street: "1 Main St", City: "Springfield", Country: "US"},
	}
}

// 事件总线不可用不影响下单结果
func TestCreateOrder_SucceedsWhenEventSinkFails(t *testing.T) {
	svc, _ := newTestService(t, &stubSink{err: errors.New("kafka unreachable")})

	order, err := svc.CreateOrder(t.Context(), validRequest(uuid.NewString()))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, domain.SagaCompleted, order.SagaState)
	assert.True(t, decimal.RequireFromString("26.00").Equal(order.TotalAmount))

	stored, err := svc.GetOrder(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.True(t, stored.HasPayment())
}

func TestCreateOrder_PublishesLifecycleEvents(t *testing.T) {
	sink := &stubSink{}
	svc, _ := newTestService(t, sink)

	_, err := svc.CreateOrder(t.Context(), validRequest(uuid.NewString()))
	require.NoError(t, err)

	var kinds []domain.EventKind
	for _, e := range sink.events {
		kinds = append(kinds, e.kind)
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventInventoryReserved,
		domain.EventPaymentCompleted,
		domain.EventOrderConfirmed,
	}, kinds)
}

func TestCancelOrder_CommittedOrderRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubSink{})
	order, err := svc.CreateOrder(t.Context(), validRequest(uuid.NewString()))
	require.NoError(t, err)

	_, err = svc.CancelOrder(t.Context(), order.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)

	_, err = svc.CancelOrder(t.Context(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListUserOrders_Pagination(t *testing.T) {
	svc, _ := newTestService(t, &stubSink{})
	userID := uuid.NewString()
	for range 3 {
		_, err := svc.CreateOrder(t.Context(), validRequest(userID))
		require.NoError(t, err)
	}

	page, err := svc.ListUserOrders(t.Context(), userID, domain.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, page.Pagination)

	empty, err := svc.ListUserOrders(t.Context(), uuid.NewString(), domain.Page{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Orders)
	assert.Equal(t, Pagination{Page: 1, Limit: domain.DefaultPageSize, Total: 0, TotalPages: 0}, empty.Pagination)
}
