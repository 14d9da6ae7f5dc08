// internal/service/order/domain/state.go
package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Status 是面向用户的订单生命周期状态
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaymentCompleted  Status = "payment_completed"
	StatusPaymentFailed     Status = "payment_failed"
	StatusConfirmed         Status = "confirmed"
	StatusShipped           Status = "shipped"
	StatusDelivered         Status = "delivered"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
)

// SagaState 是面向编排器的流程状态
type SagaState string

const (
	SagaStarted           SagaState = "started"
	SagaInventoryReserved SagaState = "inventory_reserved"
	SagaPaymentProcessing SagaState = "payment_processing"
	SagaCompleted         SagaState = "completed"
	SagaCompensating      SagaState = "compensating"
	SagaFailed            SagaState = "failed"
)

// IsTerminal completed 和 failed 是终态
func (s SagaState) IsTerminal() bool {
	return s == SagaCompleted || s == SagaFailed
}

// SagaEvent 是驱动状态迁移的具名事件
type SagaEvent string

const (
	EvInventoryReserved   SagaEvent = "inventory_reserved"
	EvPaymentStarted      SagaEvent = "payment_started"
	EvPaymentSucceeded    SagaEvent = "payment_succeeded"
	EvConfirmed           SagaEvent = "confirmed"
	EvCompensationStarted SagaEvent = "compensation_started"
	EvCompensated         SagaEvent = "compensated"
)

var ErrIllegalTransition = errors.New("illegal saga transition")

// transition 描述一条迁移规则。fromStatus 为空表示不限制 status，toStatus 为空表示保持 status 不变。
type transition struct {
	fromStates []SagaState
	fromStatus []Status
	toStatus   Status
	toState    SagaState
}

// transitions 是唯一的状态迁移表，status 和 sagaState 只能通过它一起变化
var transitions = map[SagaEvent]transition{
	EvInventoryReserved: {
		fromStates: []SagaState{SagaStarted},
		fromStatus: []Status{StatusPending},
		toStatus:   StatusPending,
		toState:    SagaInventoryReserved,
	},
	EvPaymentStarted: {
		fromStates: []SagaState{SagaInventoryReserved},
		fromStatus: []Status{StatusPending},
		toStatus:   StatusPaymentProcessing,
		toState:    SagaPaymentProcessing,
	},
	EvPaymentSucceeded: {
		fromStates: []SagaState{SagaPaymentProcessing},
		fromStatus: []Status{StatusPaymentProcessing},
		toStatus:   StatusPaymentCompleted,
		toState:    SagaPaymentProcessing,
	},
	EvConfirmed: {
		fromStates: []SagaState{SagaPaymentProcessing},
		fromStatus: []Status{StatusPaymentCompleted},
		toStatus:   StatusConfirmed,
		toState:    SagaCompleted,
	},
	// 任意非终态都可以进入补偿
	EvCompensationStarted: {
		fromStates: []SagaState{SagaStarted, SagaInventoryReserved, SagaPaymentProcessing},
		toState:    SagaCompensating,
	},
	EvCompensated: {
		fromStates: []SagaState{SagaCompensating},
		toStatus:   StatusCancelled,
		toState:    SagaFailed,
	},
}

// Transition 计算 (status, sagaState) 在 ev 作用下的下一对取值，不修改订单。
func Transition(status Status, state SagaState, ev SagaEvent) (Status, SagaState, error) {
	t, ok := transitions[ev]
	if !ok {
		return status, state, fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
	}
	if !slices.Contains(t.fromStates, state) {
		return status, state, fmt.Errorf("%w: %s not allowed from saga state %s", ErrIllegalTransition, ev, state)
	}
	if len(t.fromStatus) > 0 && !slices.Contains(t.fromStatus, status) {
		return status, state, fmt.Errorf("%w: %s not allowed from status %s", ErrIllegalTransition, ev, status)
	}

	next := t.toStatus
	if next == "" {
		next = status
	}
	return next, t.toState, nil
}
