package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(productID string, qty int, price string) OrderItem {
	return OrderItem{ProductID: productID, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestNewOrder_ComputesTotal(t *testing.T) {
	o, err := NewOrder("user-1", []OrderItem{
		item("p-1", 2, "10.00"),
		item("p-2", 3, "0.10"),
	}, ShippingAddress{City: "Berlin"})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, SagaStarted, o.SagaState)
	assert.Equal(t, "20.30", o.TotalAmount.StringFixed(2))
	assert.Nil(t, o.PaymentID)
	assert.Len(t, o.Items, 2)
}

func TestNewOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		items  []OrderItem
		fields []string
	}{
		{name: "no items", userID: "u", items: nil, fields: []string{"items"}},
		{name: "missing user", userID: " ", items: []OrderItem{item("p", 1, "1")}, fields: []string{"userId"}},
		{name: "zero quantity", userID: "u", items: []OrderItem{item("p", 0, "1")}, fields: []string{"items[0].quantity"}},
		{
			name:   "same product with different prices",
			userID: "u",
			items:  []OrderItem{item("p", 1, "1"), item("q", 1, "1"), item("p", 1, "2")},
			fields: []string{"items[2].price"},
		},
		{
			name:   "negative price and missing product",
			userID: "u",
			items:  []OrderItem{item("p", 1, "1"), item("", 1, "-0.01")},
			fields: []string{"items[1].productId", "items[1].price"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.userID, tt.items, ShippingAddress{})
			require.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			var got []string
			for _, f := range vErr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestNewOrder_MergesLinesForSameProduct(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{
		item("p-1", 2, "10"),
		item("p-2", 1, "1"),
		item("p-1", 3, "10"),
	}, ShippingAddress{})
	require.NoError(t, err)

	assert.Equal(t, []OrderItem{item("p-1", 5, "10"), item("p-2", 1, "1")}, o.Items)
	assert.Equal(t, "51.00", o.TotalAmount.StringFixed(2))
}

func TestNewOrder_ZeroPriceAllowed(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{item("gift", 1, "0")}, ShippingAddress{})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.IsZero())
}

func TestOrder_HappyPathLifecycle(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{item("p", 1, "5")}, ShippingAddress{})
	require.NoError(t, err)

	require.NoError(t, o.Apply(EvInventoryReserved))
	require.NoError(t, o.Apply(EvPaymentStarted))
	assert.True(t, o.Cancellable())

	require.NoError(t, o.RecordPayment("pay-1"))
	assert.True(t, o.HasPayment())
	assert.Equal(t, StatusPaymentCompleted, o.Status)
	assert.False(t, o.Cancellable())

	require.NoError(t, o.Apply(EvConfirmed))
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.True(t, o.IsTerminal())
}

func TestOrder_RecordPaymentOnlyDuringPayment(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{item("p", 1, "5")}, ShippingAddress{})
	require.NoError(t, err)

	require.ErrorIs(t, o.RecordPayment("pay-1"), ErrIllegalTransition)
	assert.Nil(t, o.PaymentID)

	require.NoError(t, o.Apply(EvInventoryReserved))
	require.NoError(t, o.Apply(EvPaymentStarted))
	require.Error(t, o.RecordPayment(""))
	assert.Nil(t, o.PaymentID)
}

func TestOrder_Clone(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{item("p", 1, "5")}, ShippingAddress{})
	require.NoError(t, err)
	require.NoError(t, o.Apply(EvInventoryReserved))
	require.NoError(t, o.Apply(EvPaymentStarted))
	require.NoError(t, o.RecordPayment("pay-1"))

	c := o.Clone()
	c.Items[0].Quantity = 99
	*c.PaymentID = "other"

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "pay-1", *o.PaymentID)
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, &InsufficientStockError{ProductID: "p"}, ErrInsufficientStock)
	assert.ErrorIs(t, &PaymentDeclinedError{Reason: "limit"}, ErrPaymentDeclined)

	cause := errors.New("circuit open")
	unavailable := &DependencyUnavailableError{Service: "payment-service", Err: cause}
	assert.ErrorIs(t, unavailable, ErrDependencyUnavailable)
	assert.ErrorIs(t, unavailable, cause)

	transport := &TransportError{Service: "inventory-service", Op: "reserve", Err: cause}
	assert.ErrorIs(t, transport, ErrTransport)
	assert.Contains(t, transport.Error(), "inventory-service reserve")

	assert.ErrorIs(t, &CompensationFailure{OrderID: "o", Err: cause}, ErrCompensationFailed)

	assert.True(t, IsBusinessRejection(&InsufficientStockError{}))
	assert.True(t, IsBusinessRejection(&PaymentDeclinedError{}))
	assert.False(t, IsBusinessRejection(transport))
}

func TestEventKind(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range EventKinds() {
		assert.True(t, k.Valid())
		assert.False(t, seen[k.String()], "duplicate name %s", k)
		seen[k.String()] = true
	}
	assert.Equal(t, "order.failed", EventOrderFailed.String())
	assert.False(t, EventKind(0).Valid())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, Page{Page: 2, Limit: MaxPageSize}, Page{Page: 2, Limit: 1000}.Normalize())
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.Offset())
}

func TestOrder_ApplyWithRestoresOnPersistFailure(t *testing.T) {
	o, err := NewOrder("u", []OrderItem{item("p", 1, "5")}, ShippingAddress{})
	require.NoError(t, err)

	errWrite := errors.New("write failed")
	err = o.ApplyWith(EvInventoryReserved, func(got *Order) error {
		assert.Equal(t, SagaInventoryReserved, got.SagaState, "persist 看到的是迁移后的状态")
		return errWrite
	})
	require.ErrorIs(t, err, errWrite)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, SagaStarted, o.SagaState)

	require.NoError(t, o.ApplyWith(EvInventoryReserved, func(*Order) error { return nil }))
	assert.Equal(t, SagaInventoryReserved, o.SagaState)

	called := false
	err = o.ApplyWith(EvConfirmed, func(*Order) error { called = true; return nil })
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.False(t, called)
}
