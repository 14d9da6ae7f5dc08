package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudretail/internal/pkg/breaker"
)

func TestCollector_BreakerObserver(t *testing.T) {
	c := NewCollector("test")

	c.StateChanged("payment-process", breaker.StateClosed, breaker.StateOpen)
	c.CallFinished("payment-process", breaker.OutcomeFailure, 10*time.Millisecond)
	c.CallFinished("payment-process", breaker.OutcomeRejected, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BreakerState.WithLabelValues("payment-process")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BreakerCalls.WithLabelValues("payment-process", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BreakerCalls.WithLabelValues("payment-process", "rejected")))

	c.StateChanged("payment-process", breaker.StateOpen, breaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BreakerState.WithLabelValues("payment-process")))
}

func TestCollector_DomainCounters(t *testing.T) {
	c := NewCollector("test")

	c.SagaFinished(SagaCompleted)
	c.SagaFinished(SagaCompensated)
	c.SagaFinished(SagaCompensated)
	c.CompensationStep("release_inventory", CompensationFailed)
	c.EventPublished("ORDER_CREATED", true)
	c.EventPublished("ORDER_CREATED", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Sagas.WithLabelValues(SagaCompensated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Compensations.WithLabelValues("release_inventory", CompensationFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsPublished.WithLabelValues("ORDER_CREATED", "failed")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.SagaFinished(SagaCompleted)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `test_order_sagas_total{outcome="completed"} 1`)
}
