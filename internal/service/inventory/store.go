// internal/service/inventory/store.go
package inventory

import (
	"context"
	"errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("inventory not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	// ErrReservationConflict 同一订单对同一商品已有数量不同的预占
	ErrReservationConflict = errors.New("reservation already exists with a different quantity")
)

// Stock 是单个商品的库存账本
type Stock struct {
	ProductID string `json:"productId"`
	Available int64  `json:"availableStock"`
	Reserved  int64  `json:"reservedStock"`
	Total     int64  `json:"totalStock"`
}

// Store 是库存账本的存储。
// Reserve 和 Release 以 (orderID, productID) 为幂等键：相同数量的重复预占不会重复扣减，
// 数量不同时返回 ErrReservationConflict，重复释放是 no-op。
type Store interface {
	Reserve(ctx context.Context, orderID, productID string, quantity int64) error
	// Release 返回实际归还的数量，没有对应的预占记录时返回 0
	Release(ctx context.Context, orderID, productID string) (int64, error)
	// Adjust 增减可用库存和总库存，商品不存在时创建
	Adjust(ctx context.Context, productID string, delta int64) (Stock, error)
	Get(ctx context.Context, productID string) (Stock, error)
}
