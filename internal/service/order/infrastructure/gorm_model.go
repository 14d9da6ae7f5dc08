package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"cloudretail/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID              string                 `gorm:"primaryKey;type:char(36)"`
	UserID          string                 `gorm:"type:varchar(64);not null;index:idx_orders_user_created,priority:1"`
	Status          string                 `gorm:"type:varchar(32);not null"`
	SagaState       string                 `gorm:"type:varchar(32);not null"`
	TotalAmount     decimal.Decimal        `gorm:"type:decimal(12,2);not null"`
	ShippingAddress domain.ShippingAddress `gorm:"serializer:json;type:json"`
	PaymentID       sql.NullString         `gorm:"type:varchar(64)"`
	CreatedAt       time.Time              `gorm:"precision:6;index:idx_orders_user_created,priority:2"`
	UpdatedAt       time.Time              `gorm:"precision:6"`

	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   string          `gorm:"type:char(36);not null;index"`
	ProductID string          `gorm:"type:varchar(64);not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// toOrderModel 将领域模型转换为数据库模型
func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		SagaState:       string(o.SagaState),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentID:       nullString(o.PaymentID),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return m
}

// toDomainOrder 将数据库模型转换为领域模型
func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		Status:          domain.Status(m.Status),
		SagaState:       domain.SagaState(m.SagaState),
		TotalAmount:     m.TotalAmount,
		ShippingAddress: m.ShippingAddress,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Items:           make([]domain.OrderItem, 0, len(m.Items)),
	}
	if m.PaymentID.Valid {
		id := m.PaymentID.String
		o.PaymentID = &id
	}
	for _, item := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return o
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
