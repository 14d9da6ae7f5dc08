package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentService 是支付服务的出站端口。
type PaymentService interface {
	// Process 扣款成功时返回 paymentID；被拒时返回 *domain.PaymentDeclinedError
	Process(ctx context.Context, orderID, userID string, amount decimal.Decimal) (string, error)
	// Refund 是 Process 的补偿操作
	Refund(ctx context.Context, paymentID, orderID string) error
}
