// internal/service/order/domain/event.go
package domain

import "time"

// EventKind 是封闭的领域事件集合
type EventKind int

const (
	EventOrderConfirmed EventKind = iota + 1
	EventOrderFailed
	EventInventoryReserved
	EventInventoryReleased
	EventPaymentCompleted
	EventPaymentRefunded
)

var eventKindNames = map[EventKind]string{
	EventOrderConfirmed:    "order.confirmed",
	EventOrderFailed:       "order.failed",
	EventInventoryReserved: "inventory.reserved",
	EventInventoryReleased: "inventory.released",
	EventPaymentCompleted:  "payment.completed",
	EventPaymentRefunded:   "payment.refunded",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k EventKind) Valid() bool {
	_, ok := eventKindNames[k]
	return ok
}

// EventKinds 返回全部事件类型
func EventKinds() []EventKind {
	return []EventKind{
		EventOrderConfirmed,
		EventOrderFailed,
		EventInventoryReserved,
		EventInventoryReleased,
		EventPaymentCompleted,
		EventPaymentRefunded,
	}
}

// Event 是发往事件总线的领域事件
type Event struct {
	Kind       EventKind
	OrderID    string
	UserID     string
	OccurredAt time.Time
	Detail     map[string]any
}

func newEvent(kind EventKind, o *Order, detail map[string]any) Event {
	return Event{
		Kind:       kind,
		OrderID:    o.ID,
		UserID:     o.UserID,
		OccurredAt: time.Now().UTC(),
		Detail:     detail,
	}
}

func OrderConfirmed(o *Order) Event {
	return newEvent(EventOrderConfirmed, o, map[string]any{
		"totalAmount": o.TotalAmount.StringFixed(2),
		"paymentId":   derefString(o.PaymentID),
	})
}

func OrderFailed(o *Order, reason string) Event {
	return newEvent(EventOrderFailed, o, map[string]any{"reason": reason})
}

func InventoryReserved(o *Order, items []OrderItem) Event {
	return newEvent(EventInventoryReserved, o, map[string]any{"items": items})
}

func InventoryReleased(o *Order, items []OrderItem) Event {
	return newEvent(EventInventoryReleased, o, map[string]any{"items": items})
}

func PaymentCompleted(o *Order) Event {
	return newEvent(EventPaymentCompleted, o, map[string]any{
		"paymentId": derefString(o.PaymentID),
		"amount":    o.TotalAmount.StringFixed(2),
	})
}

func PaymentRefunded(o *Order) Event {
	return newEvent(EventPaymentRefunded, o, map[string]any{
		"paymentId": derefString(o.PaymentID),
		"amount":    o.TotalAmount.StringFixed(2),
	})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
