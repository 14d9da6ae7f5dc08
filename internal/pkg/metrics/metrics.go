// Package metrics 收集订单服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudretail/internal/pkg/breaker"
)

// Saga 结果标签
const (
	SagaCompleted   = "completed"
	SagaCompensated = "compensated"
	SagaFailed      = "failed"
)

// 补偿步骤结果标签
const (
	CompensationOK     = "ok"
	CompensationFailed = "failed"
)

// Collector 持有所有指标，注册在独立的 Registry 上，测试之间互不干扰。
type Collector struct {
	registry *prometheus.Registry

	BreakerState    *prometheus.GaugeVec
	BreakerCalls    *prometheus.CounterVec
	BreakerDuration *prometheus.HistogramVec
	Sagas           *prometheus.CounterVec
	Compensations   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		BreakerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_calls_total",
			Help:      "Calls made through a circuit breaker, by outcome",
		}, []string{"name", "outcome"}),
		BreakerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_call_duration_seconds",
			Help:      "Duration of calls made through a circuit breaker",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
		Sagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_sagas_total",
			Help:      "Order sagas finished, by outcome",
		}, []string{"outcome"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_compensation_steps_total",
			Help:      "Compensation steps executed, by step and result",
		}, []string{"step", "result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_published_total",
			Help:      "Domain events handed to the event sink, by kind and result",
		}, []string{"kind", "result"}),
	}

	registry.MustRegister(
		c.BreakerState,
		c.BreakerCalls,
		c.BreakerDuration,
		c.Sagas,
		c.Compensations,
		c.EventsPublished,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler 暴露 /metrics。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func stateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateHalfOpen:
		return 1
	case breaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// StateChanged 实现 breaker.Observer
func (c *Collector) StateChanged(name string, _, to breaker.State) {
	c.BreakerState.WithLabelValues(name).Set(stateValue(to))
}

// CallFinished 实现 breaker.Observer
func (c *Collector) CallFinished(name string, outcome breaker.Outcome, elapsed time.Duration) {
	c.BreakerCalls.WithLabelValues(name, string(outcome)).Inc()
	if outcome != breaker.OutcomeRejected {
		c.BreakerDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

func (c *Collector) SagaFinished(outcome string) {
	c.Sagas.WithLabelValues(outcome).Inc()
}

func (c *Collector) CompensationStep(step, result string) {
	c.Compensations.WithLabelValues(step, result).Inc()
}

func (c *Collector) EventPublished(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.EventsPublished.WithLabelValues(kind, result).Inc()
}
