// internal/service/payment/handler.go
package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"cloudretail/internal/pkg/httpx"
	"cloudretail/internal/pkg/logger"
)

const ServiceName = "payment-service"

type processRequest struct {
	OrderID string          `json:"orderId" validate:"required"`
	UserID  string          `json:"userId" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

type refundRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	OrderID   string `json:"orderId"`
}

type Handler struct {
	ledger   *Ledger
	validate *validator.Validate
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger, validate: validator.New()}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", httpx.Healthz(ServiceName))

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(httpx.Trace(ServiceName))
		r.Post("/process", h.process)
		r.Post("/refund", h.refund)
		r.Get("/{id}", h.get)
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

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		httpx.WriteMessage(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	ctx := r.Context()

	p, err := h.ledger.Process(req.OrderID, req.UserID, req.Amount)
	if err != nil {
		logger.Ctx(ctx).Warn().Str("order_id", req.OrderID).Str("reason", p.FailureReason).Msg("Payment declined")
		httpx.WriteMessage(w, http.StatusPaymentRequired, "Payment declined: "+p.FailureReason)
		return
	}

	logger.Ctx(ctx).Info().Str("order_id", req.OrderID).Str("payment_id", p.ID).Msg("✅ Payment completed")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Payment processed successfully",
		"paymentId": p.ID,
		"status":    p.Status,
	})
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	p, err := h.ledger.Refund(req.PaymentID)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteMessage(w, http.StatusNotFound, "Payment not found")
		return
	case errors.Is(err, ErrAlreadyRefunded):
		// 重复退款按成功处理
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Payment already refunded", "status": p.Status})
		return
	case err != nil:
		httpx.WriteMessage(w, http.StatusConflict, "Payment cannot be refunded")
		return
	}

	logger.Ctx(ctx).Info().Str("order_id", req.OrderID).Str("payment_id", p.ID).Msg("Payment refunded")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "Payment refunded successfully", "status": p.Status})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Get(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteMessage(w, http.StatusNotFound, "Payment not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"payment": p})
}
