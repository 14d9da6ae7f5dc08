// internal/service/payment/ledger.go
package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDeclined        = errors.New("payment declined")
	ErrNotFound        = errors.New("payment not found")
	ErrAlreadyRefunded = errors.New("payment already refunded")
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Ledger 是进程内的支付账本。金额超过 limit 的扣款被拒，limit 为零表示不设上限。
type Ledger struct {
	mu       sync.RWMutex
	limit    decimal.Decimal
	payments map[string]*Payment
	// byOrder 让同一订单的重复扣款返回同一笔支付
	byOrder map[string]string
}

func NewLedger(limit decimal.Decimal) *Ledger {
	return &Ledger{
		limit:    limit,
		payments: make(map[string]*Payment),
		byOrder:  make(map[string]string),
	}
}

// Process 扣款。被拒的支付也会入账，状态为 failed。
func (l *Ledger) Process(orderID, userID string, amount decimal.Decimal) (Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.byOrder[orderID]; ok {
		if p := l.payments[id]; p.Status == StatusCompleted {
			return *p, nil
		}
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Amount:    amount,
		Currency:  "USD",
		Status:    StatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if l.limit.IsPositive() && amount.GreaterThan(l.limit) {
		p.Status = StatusFailed
		p.FailureReason = "amount exceeds limit " + l.limit.StringFixed(2)
	}
	l.payments[p.ID] = p
	l.byOrder[orderID] = p.ID

	if p.Status == StatusFailed {
		return *p, ErrDeclined
	}
	return *p, nil
}

// Refund 退款，只有 completed 的支付可以退
func (l *Ledger) Refund(paymentID string) (Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.payments[paymentID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	switch p.Status {
	case StatusRefunded:
		return *p, ErrAlreadyRefunded
	case StatusFailed:
		return *p, ErrDeclined
	}
	p.Status = StatusRefunded
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

func (l *Ledger) Get(paymentID string) (Payment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.payments[paymentID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return *p, nil
}
