package breaker

import (
	"context"
	"time"

	"cloudretail/internal/pkg/logger"
)

// Observer 接收熔断器的状态迁移和调用结果。实现必须是非阻塞的，且不能回调熔断器本身。
type Observer interface {
	StateChanged(name string, from, to State)
	CallFinished(name string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, State, State)             {}
func (nopObserver) CallFinished(string, Outcome, time.Duration) {}

// Observers 把事件扇出给多个 Observer。
type Observers []Observer

func (o Observers) StateChanged(name string, from, to State) {
	for _, obs := range o {
		obs.StateChanged(name, from, to)
	}
}

func (o Observers) CallFinished(name string, outcome Outcome, elapsed time.Duration) {
	for _, obs := range o {
		obs.CallFinished(name, outcome, elapsed)
	}
}

// LogObserver 用 zerolog 记录状态迁移和失败调用。
type LogObserver struct{}

func (LogObserver) StateChanged(name string, from, to State) {
	l := logger.Ctx(context.Background())
	switch to {
	case StateOpen:
		l.Warn().Str("breaker", name).Str("from", string(from)).
			Msg("CIRCUIT BREAKER: circuit is now OPEN, subsequent calls will fail fast")
	case StateHalfOpen:
		l.Info().Str("breaker", name).Str("from", string(from)).
			Msg("CIRCUIT BREAKER: circuit is now HALF-OPEN, probing dependency")
	default:
		l.Info().Str("breaker", name).Str("from", string(from)).
			Msg("CIRCUIT BREAKER: dependency is back online, circuit is now CLOSED")
	}
}

func (LogObserver) CallFinished(name string, outcome Outcome, elapsed time.Duration) {
	l := logger.Ctx(context.Background())
	switch outcome {
	case OutcomeFailure, OutcomeTimeout:
		l.Error().Str("breaker", name).Str("outcome", string(outcome)).Dur("elapsed", elapsed).Msg("call failed")
	case OutcomeRejected:
		l.Warn().Str("breaker", name).Msg("call rejected, dependency unavailable")
	default:
		l.Debug().Str("breaker", name).Str("outcome", string(outcome)).Dur("elapsed", elapsed).Msg("call finished")
	}
}
