package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 是测试用的 Store，语义与 RedisStore 一致
type memStore struct {
	mu           sync.Mutex
	stock        map[string]*Stock
	reservations map[string]int64
}

func newMemStore() *memStore {
	return &memStore{stock: map[string]*Stock{}, reservations: map[string]int64{}}
}

func (m *memStore) Reserve(_ context.Context, orderID, productID string, quantity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orderID + "/" + productID
	if existing, ok := m.reservations[key]; ok {
		if existing != quantity {
			return ErrReservationConflict
		}
		return nil
	}
	s, ok := m.stock[productID]
	if !ok || s.Available < quantity {
		return ErrInsufficientStock
	}
	s.Available -= quantity
	s.Reserved += quantity
	m.reservations[key] = quantity
	return nil
}

func (m *memStore) Release(_ context.Context, orderID, productID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := orderID + "/" + productID
	qty, ok := m.reservations[key]
	if !ok {
		return 0, nil
	}
	s := m.stock[productID]
	s.Available += qty
	s.Reserved -= qty
	delete(m.reservations, key)
	return qty, nil
}

func (m *memStore) Adjust(_ context.Context, productID string, delta int64) (Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[productID]
	if !ok {
		s = &Stock{ProductID: productID}
		m.stock[productID] = s
	}
	if s.Available+delta < 0 {
		return Stock{}, ErrInvalidQuantity
	}
	s.Available += delta
	s.Total += delta
	return *s, nil
}

func (m *memStore) Get(_ context.Context, productID string) (Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[productID]
	if !ok {
		return Stock{}, ErrNotFound
	}
	return *s, nil
}

func call(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestHandler_ReserveAndRelease(t *testing.T) {
	store := newMemStore()
	h := NewHandler(store).Routes()

	rec, _ := call(t, h, http.MethodPut, "/api/v1/inventory/p-1/adjust", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := call(t, h, http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"p-1","quantity":3,"orderId":"o-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stock reserved successfully", body["message"])

	// 重复预占不重复扣减
	rec, _ = call(t, h, http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"p-1","quantity":3,"orderId":"o-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 同一订单同一商品数量不同，不能当作重试吞掉
	rec, _ = call(t, h, http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"p-1","quantity":1,"orderId":"o-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = call(t, h, http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"p-1","quantity":3,"orderId":"o-2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock", body["message"])

	rec, body = call(t, h, http.MethodGet, "/api/v1/inventory/p-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"productId": "p-1", "availableStock": 2.0, "reservedStock": 3.0, "totalStock": 5.0,
	}, body["inventory"])

	rec, body = call(t, h, http.MethodPost, "/api/v1/inventory/release", `{"productId":"p-1","quantity":3,"orderId":"o-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, body["released"])

	rec, body = call(t, h, http.MethodPost, "/api/v1/inventory/release", `{"productId":"p-1","quantity":3,"orderId":"o-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["released"])

	s, err := store.Get(t.Context(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, Stock{ProductID: "p-1", Available: 5, Reserved: 0, Total: 5}, s)
}

func TestHandler_BadRequests(t *testing.T) {
	h := NewHandler(newMemStore()).Routes()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/api/v1/inventory/reserve", `{`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"p-1","quantity":0,"orderId":"o-1"}`, http.StatusBadRequest},
		{"missing order", http.MethodPost, "/api/v1/inventory/release", `{"productId":"p-1","quantity":1}`, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/v1/inventory/reserve", `{"productId":"nope","quantity":1,"orderId":"o-1"}`, http.StatusBadRequest},
		{"negative adjust", http.MethodPut, "/api/v1/inventory/p-1/adjust", `{"quantity":-1}`, http.StatusBadRequest},
		{"get unknown", http.MethodGet, "/api/v1/inventory/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := call(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
