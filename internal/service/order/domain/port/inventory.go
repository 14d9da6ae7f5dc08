package port

import (
	"context"

	"cloudretail/internal/service/order/domain"
)

// InventoryService 是库存服务的出站端口。
// Reserve 在库存不足时返回 *domain.InsufficientStockError，其他失败返回 *domain.TransportError。
type InventoryService interface {
	Reserve(ctx context.Context, orderID string, item domain.OrderItem) error
	// Release 是 Reserve 的补偿操作
	Release(ctx context.Context, orderID string, item domain.OrderItem) error
}
