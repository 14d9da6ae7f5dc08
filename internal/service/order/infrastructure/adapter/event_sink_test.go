package adapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudretail/internal/service/order/domain"
)

func TestEventEnvelope(t *testing.T) {
	payment := "pay-1"
	o := &domain.Order{ID: "o-1", UserID: "u-1", PaymentID: &payment}
	evt := domain.OrderConfirmed(o)
	evt.OccurredAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(newEnvelope(evt))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "order.confirmed", got["type"])
	assert.Equal(t, "o-1", got["orderId"])
	assert.Equal(t, "u-1", got["userId"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got["occurredAt"])
	assert.Equal(t, "pay-1", got["detail"].(map[string]any)["paymentId"])
}

func TestLogEventSink_NeverFails(t *testing.T) {
	evt := domain.OrderFailed(&domain.Order{ID: "o-1", UserID: "u-1"}, "insufficient stock")
	assert.NoError(t, LogEventSink{}.Emit(t.Context(), "orders", evt))
}
