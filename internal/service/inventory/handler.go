// internal/service/inventory/handler.go
package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cloudretail/internal/pkg/httpx"
	"cloudretail/internal/pkg/logger"
)

const ServiceName = "inventory-service"

type reservationRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	OrderID   string `json:"orderId" validate:"required"`
}

type adjustRequest struct {
	Quantity int64 `json:"quantity" validate:"required"`
}

// Handler 暴露库存服务的 HTTP 接口
type Handler struct {
	store    Store
	validate *validator.Validate
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, validate: validator.New()}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", httpx.Healthz(ServiceName))

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(httpx.Trace(ServiceName))
		r.Post("/reserve", h.reserve)
		r.Post("/release", h.release)
		r.Put("/{productId}/adjust", h.adjust)
		r.Get("/{productId}", h.get)
	})
	return r
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/", h.Routes())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.WriteMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("product.id", req.ProductID),
		attribute.Int64("item.quantity", req.Quantity),
	)

	if err := h.store.Reserve(ctx, req.OrderID, req.ProductID, req.Quantity); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			logger.Ctx(ctx).Warn().Str("order_id", req.OrderID).Str("product_id", req.ProductID).Msg("Insufficient stock")
			httpx.WriteMessage(w, http.StatusBadRequest, "Insufficient stock")
			return
		}
		if errors.Is(err, ErrReservationConflict) {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Str("product_id", req.ProductID).Msg("Conflicting reservation")
			httpx.WriteMessage(w, http.StatusConflict, "Reservation already exists with a different quantity")
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Msg("Reserve stock failed")
		httpx.WriteMessage(w, http.StatusInternalServerError, "Failed to reserve stock")
		return
	}

	logger.Ctx(ctx).Info().
		Str("order_id", req.OrderID).
		Str("product_id", req.ProductID).
		Int64("quantity", req.Quantity).
		Msg("Stock reserved")
	httpx.WriteMessage(w, http.StatusOK, "Stock reserved successfully")
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	released, err := h.store.Release(ctx, req.OrderID, req.ProductID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Msg("Release stock failed")
		httpx.WriteMessage(w, http.StatusInternalServerError, "Failed to release stock")
		return
	}
	if released == 0 {
		logger.Ctx(ctx).Info().Str("order_id", req.OrderID).Str("product_id", req.ProductID).Msg("No reservation to release")
	} else {
		logger.Ctx(ctx).Info().Str("order_id", req.OrderID).Str("product_id", req.ProductID).Int64("quantity", released).Msg("Stock released")
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Stock released successfully", "released": released})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	stock, err := h.store.Adjust(r.Context(), chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		if errors.Is(err, ErrInvalidQuantity) {
			httpx.WriteMessage(w, http.StatusBadRequest, "Adjustment would make stock negative")
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("Adjust stock failed")
		httpx.WriteMessage(w, http.StatusInternalServerError, "Failed to adjust stock")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Stock adjusted successfully", "inventory": stock})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	stock, err := h.store.Get(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteMessage(w, http.StatusNotFound, "Inventory not found")
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("Get inventory failed")
		httpx.WriteMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"inventory": stock})
}
