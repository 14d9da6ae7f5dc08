package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/pkg/httpx"
	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/order/application"
	"cloudretail/internal/service/order/domain"
)

const serviceName = "order-service"

// BreakerStatus 提供熔断器状态快照，由 breaker.Registry 实现
type BreakerStatus interface {
	Snapshot() []breaker.Snapshot
}

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service  *application.OrderApplicationService
	breakers BreakerStatus
	metrics  http.Handler
	validate *validator.Validate
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例，metrics 为 nil 时不暴露 /metrics
func NewOrderHandler(service *application.OrderApplicationService, breakers BreakerStatus, metrics http.Handler) *OrderHandler {
	return &OrderHandler{
		service:  service,
		breakers: breakers,
		metrics:  metrics,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal 按数值参与 gte/lte 等比较
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Routes 返回挂好全部路由的 chi router
func (h *OrderHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", httpx.Healthz(serviceName))
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpx.Trace(serviceName))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/user/{userId}", h.listUserOrders)
			r.Get("/{id}", h.getOrder)
			r.Put("/{id}/cancel", h.cancelOrder)
		})
		r.Get("/breakers", h.breakerStatus)
	})
	return r
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/", h.Routes())
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors"`
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, validationResponse{
			Message: "Validation failed",
			Errors:  fieldErrors(err),
		})
		return
	}

	ctx := r.Context()
	order, err := h.service.CreateOrder(ctx, &req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			httpx.WriteJSON(w, http.StatusBadRequest, validationResponse{Message: "Validation failed", Errors: verr.Fields})
			return
		}

		status := sagaFailureStatus(err)
		l := logger.Ctx(ctx).Warn()
		if status == http.StatusInternalServerError {
			l = logger.Ctx(ctx).Error()
		}
		body := map[string]string{"message": err.Error()}
		if order != nil {
			body["orderId"] = order.ID
			l = l.Str("order_id", order.ID)
		}
		l.Err(err).Int("status", status).Msg("Create order failed")
		httpx.WriteJSON(w, status, body)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

// sagaFailureStatus 按错误分类映射 HTTP 状态码
func sagaFailureStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *OrderHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	page := domain.Page{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", domain.DefaultPageSize),
	}
	result, err := h.service.ListUserOrders(r.Context(), chi.URLParam(r, "userId"), page)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("List user orders failed")
		httpx.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotCancellable) {
			httpx.WriteMessage(w, http.StatusBadRequest, "Order cannot be cancelled")
			return
		}
		h.writeLookupError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

func (h *OrderHandler) breakerStatus(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"breakers": h.breakers.Snapshot()})
}

func (h *OrderHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		httpx.WriteMessage(w, http.StatusNotFound, "Order not found")
		return
	}
	logger.Ctx(r.Context()).Error().Err(err).Msg("Order request failed")
	httpx.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func fieldErrors(err error) []domain.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.FieldError{
			Field:   fe.Namespace(),
			Message: "failed on '" + fe.Tag() + "'",
		})
	}
	return out
}
