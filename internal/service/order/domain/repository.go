// internal/service/order/domain/repository.go
package domain

import "context"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page 分页参数，页码从 1 开始
type Page struct {
	Page  int
	Limit int
}

// Normalize 修正越界的分页参数
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 在一个本地事务里写入订单和订单行
	Create(ctx context.Context, order *Order) error

	// UpdateState 一起持久化 status、sagaState 和 paymentId
	UpdateState(ctx context.Context, order *Order) error

	// FindByID 找不到时返回 ErrOrderNotFound
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByUser 按创建时间倒序分页查询，同时返回总数
	FindByUser(ctx context.Context, userID string, page Page) ([]*Order, int64, error)
}
