// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem 是订单行，价格在下单时快照，之后不再从商品目录读取
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal price × quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingAddress 对编排器来说是不透明的值，创建后不可修改
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order 是订单聚合的根实体，也是 saga 的状态载体
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Status          Status          `json:"status"`
	SagaState       SagaState       `json:"sagaState"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	// PaymentID 只在支付成功后设置，补偿时据此判断是否需要退款
	PaymentID *string     `json:"paymentId"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewOrder 校验订单行，合并同一商品的行，计算总价，返回 pending/started 状态的新订单
func NewOrder(userID string, items []OrderItem, address ShippingAddress) (*Order, error) {
	if err := validateOrder(userID, items); err != nil {
		return nil, err
	}
	items = mergeItems(items)

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	now := time.Now().UTC()
	return &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          StatusPending,
		SagaState:       SagaStarted,
		TotalAmount:     total,
		ShippingAddress: address,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func validateOrder(userID string, items []OrderItem) error {
	var fields []FieldError
	if strings.TrimSpace(userID) == "" {
		fields = append(fields, FieldError{Field: "userId", Message: "is required"})
	}
	if len(items) == 0 {
		fields = append(fields, FieldError{Field: "items", Message: "must contain at least one item"})
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items[%d].productId", i), Message: "is required"})
		}
		if item.Quantity < 1 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"})
		}
		if item.Price.IsNegative() {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items[%d].price", i), Message: "must not be negative"})
		}
	}
	fields = append(fields, conflictingPrices(items)...)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// 库存按 (orderId, productId) 预占，同一商品只能有一个订单行
func mergeItems(items []OrderItem) []OrderItem {
	merged := make([]OrderItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func conflictingPrices(items []OrderItem) []FieldError {
	var fields []FieldError
	first := make(map[string]decimal.Decimal, len(items))
	for i, item := range items {
		price, ok := first[item.ProductID]
		if !ok {
			first[item.ProductID] = item.Price
			continue
		}
		if !price.Equal(item.Price) {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "must match the earlier line for the same product",
			})
		}
	}
	return fields
}

// Apply 通过迁移表同时更新 status 和 sagaState
func (o *Order) Apply(ev SagaEvent) error {
	status, state, err := Transition(o.Status, o.SagaState, ev)
	if err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = status
	o.SagaState = state
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyWith 应用迁移后调用 persist，persist 失败时恢复迁移前的 status 和 sagaState，保证内存和存储一致
func (o *Order) ApplyWith(ev SagaEvent, persist func(*Order) error) error {
	prevStatus, prevState, prevUpdated := o.Status, o.SagaState, o.UpdatedAt
	if err := o.Apply(ev); err != nil {
		return err
	}
	if err := persist(o); err != nil {
		o.Status, o.SagaState, o.UpdatedAt = prevStatus, prevState, prevUpdated
		return err
	}
	return nil
}

// RecordPayment 记录支付号并推进到 payment_completed，这是唯一设置 PaymentID 的地方
func (o *Order) RecordPayment(paymentID string) error {
	if paymentID == "" {
		return fmt.Errorf("order %s: empty payment id", o.ID)
	}
	if err := o.Apply(EvPaymentSucceeded); err != nil {
		return err
	}
	o.PaymentID = &paymentID
	return nil
}

// HasPayment 订单上是否记录了成功的支付
func (o *Order) HasPayment() bool {
	return o.PaymentID != nil && *o.PaymentID != ""
}

// Cancellable 只有尚未提交支付结果的订单可以取消
func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusPaymentProcessing
}

func (o *Order) IsTerminal() bool {
	return o.SagaState.IsTerminal()
}

// Clone 深拷贝，仓储和测试替身用它避免共享可变状态
func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.PaymentID != nil {
		id := *o.PaymentID
		c.PaymentID = &id
	}
	return &c
}
