package saga

import (
	"errors"

	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/service/order/domain"
)

const (
	inventoryService = "inventory-service"
	paymentService   = "payment-service"
)

// classify 把熔断器和适配器返回的错误归入领域错误分类
func classify(service, op string, err error) error {
	var unavailable *breaker.UnavailableError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unavailable):
		return &domain.DependencyUnavailableError{Service: service, Err: err}
	case domain.IsBusinessRejection(err),
		errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrDependencyUnavailable):
		return err
	default:
		// 超时和其他未分类错误都按传输错误处理
		return &domain.TransportError{Service: service, Op: op, Err: err}
	}
}
