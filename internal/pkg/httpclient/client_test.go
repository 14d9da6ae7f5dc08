package httpclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestClient(baseURL string) *Client {
	return NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"inventory-service": baseURL})
}

func TestPostJSON_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/inventory/reserve", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "p-1", in["productId"])

		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	var out struct {
		Message string `json:"message"`
	}
	err := newTestClient(srv.URL).PostJSON(t.Context(), "inventory-service", "/api/v1/inventory/reserve",
		map[string]string{"productId": "p-1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Message)
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Insufficient stock"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).PostJSON(t.Context(), "inventory-service", "/x", struct{}{}, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "Insufficient stock", statusErr.Message)
}

func TestPostJSON_UnknownService(t *testing.T) {
	err := newTestClient("http://localhost").PostJSON(t.Context(), "payment-service", "/x", struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment-service")
}
