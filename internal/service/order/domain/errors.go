package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order cannot be cancelled in its current state")

	ErrValidation            = errors.New("validation failed")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrTransport             = errors.New("transport error")
	ErrCompensationFailed    = errors.New("compensation failed")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 输入不合法，在任何 saga 步骤执行前被拒绝
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError 库存不足，属于业务拒绝，不可重试
type InsufficientStockError struct {
	ProductID string
	Message   string
}

func (e *InsufficientStockError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("insufficient stock for product %s: %s", e.ProductID, e.Message)
	}
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PaymentDeclinedError 支付被拒，属于业务拒绝，不可重试
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

func (e *PaymentDeclinedError) Is(target error) bool { return target == ErrPaymentDeclined }

// DependencyUnavailableError 熔断器打开，没有发起远程调用
type DependencyUnavailableError struct {
	Service string
	Err     error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("%s is currently unavailable", e.Service)
}

func (e *DependencyUnavailableError) Is(target error) bool { return target == ErrDependencyUnavailable }

func (e *DependencyUnavailableError) Unwrap() error { return e.Err }

// TransportError 超时、网络错误或下游 5xx，会计入熔断器失败率
type TransportError struct {
	Service string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// CompensationFailure 补偿流程本身失败，需要人工介入
type CompensationFailure struct {
	OrderID string
	Err     error
}

func (e *CompensationFailure) Error() string {
	return fmt.Sprintf("compensation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *CompensationFailure) Is(target error) bool { return target == ErrCompensationFailed }

func (e *CompensationFailure) Unwrap() error { return e.Err }

// IsBusinessRejection 库存不足和支付被拒说明下游是健康的
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrPaymentDeclined)
}
