package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"cloudretail/internal/pkg/httpclient"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
)

const (
	PaymentServiceName = "payment-service"
	paymentProcessPath = "/api/v1/payments/process"
	paymentRefundPath  = "/api/v1/payments/refund"
)

type processPaymentRequest struct {
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
}

type processPaymentResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

type refundPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

// PaymentHTTPAdapter 实现了 port.PaymentService 接口。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
}

var _ port.PaymentService = (*PaymentHTTPAdapter)(nil)

func NewPaymentHTTPAdapter(client *httpclient.Client) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client}
}

// Process 扣款，400/402 表示支付被拒
func (a *PaymentHTTPAdapter) Process(ctx context.Context, orderID, userID string, amount decimal.Decimal) (string, error) {
	var resp processPaymentResponse
	err := a.client.PostJSON(ctx, PaymentServiceName, paymentProcessPath,
		processPaymentRequest{OrderID: orderID, UserID: userID, Amount: amount}, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusPaymentRequired) {
			return "", &domain.PaymentDeclinedError{Reason: statusErr.Message}
		}
		return "", &domain.TransportError{Service: PaymentServiceName, Op: "process", Err: err}
	}
	if resp.PaymentID == "" {
		return "", &domain.TransportError{
			Service: PaymentServiceName,
			Op:      "process",
			Err:     fmt.Errorf("response for order %s carries no paymentId", orderID),
		}
	}
	return resp.PaymentID, nil
}

// Refund 是 Process 的补偿操作
func (a *PaymentHTTPAdapter) Refund(ctx context.Context, paymentID, orderID string) error {
	err := a.client.PostJSON(ctx, PaymentServiceName, paymentRefundPath,
		refundPaymentRequest{PaymentID: paymentID, OrderID: orderID}, nil)
	if err != nil {
		return &domain.TransportError{Service: PaymentServiceName, Op: "refund", Err: err}
	}
	return nil
}
