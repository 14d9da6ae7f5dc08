// Package breaker 为下游调用提供熔断保护。
//
// 每个 Breaker 包装一个下游操作（库存预占、支付等），在滚动窗口内统计失败率：
//   - Closed: 调用正常透传，失败计入窗口
//   - Open: 失败率超过阈值后，所有调用立即失败（不会发起网络请求）
//   - HalfOpen: 冷却期结束后只放行一次试探调用，成功则关闭，失败则重新打开
//
// 计数器由所有并发调用方共享：熔断器保护的是依赖本身，而不是单个调用方。
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrServiceUnavailable 在熔断器拒绝调用（Open 或半开试探名额已被占用）时返回，
// 调用方可以据此区分“远程调用失败”和“根本没有尝试调用”。
var ErrServiceUnavailable = errors.New("service unavailable")

// ErrCallTimeout 在调用超过 Settings.Timeout 时返回。
var ErrCallTimeout = errors.New("call timed out")

// UnavailableError 是熔断器快速失败时返回的错误。
type UnavailableError struct {
	Name  string
	State State
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is currently unavailable (circuit %s)", e.Name, e.State)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrServiceUnavailable }

// TimeoutError 表示调用超过了熔断器的超时时间，从调用方视角该调用已被放弃。
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s call timed out after %s", e.Name, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrCallTimeout }

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

func toState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Outcome 是单次调用的结果分类，上报给 Observer。
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	// OutcomeRejected 表示熔断器拒绝了调用
	OutcomeRejected Outcome = "rejected"
	// OutcomeBusinessError 表示下游正常应答但拒绝了业务请求，不计入失败率
	OutcomeBusinessError Outcome = "business_error"
)

// Settings 在创建时固定，之后不可修改。
type Settings struct {
	Name string
	// Timeout 单次调用的超时时间
	Timeout time.Duration
	// ErrorThresholdPercentage 窗口内失败百分比达到该值时打开熔断器
	ErrorThresholdPercentage float64
	// MinRequests 窗口内至少有这么多请求才评估失败率
	MinRequests uint32
	// Window 关闭状态下的统计窗口，到期后计数清零
	Window time.Duration
	// ResetTimeout 打开后经过该时长进入半开状态
	ResetTimeout time.Duration
	// IsBusinessError 标记业务拒绝（库存不足、支付被拒）。这类错误说明依赖是健康的，按成功计数。
	IsBusinessError func(err error) bool
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = 50
	}
	if s.MinRequests == 0 {
		s.MinRequests = 1
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	if s.IsBusinessError == nil {
		s.IsBusinessError = func(error) bool { return false }
	}
	return s
}

// Breaker 包装 gobreaker，增加调用超时、错误分类和观测上报。
type Breaker struct {
	name            string
	timeout         time.Duration
	isBusinessError func(error) bool
	observer        Observer
	cb              *gobreaker.CircuitBreaker
}

// New 创建熔断器。observer 为 nil 时不上报。
func New(settings Settings, observer Observer) *Breaker {
	s := settings.withDefaults()
	if observer == nil {
		observer = nopObserver{}
	}

	b := &Breaker{
		name:            s.Name,
		timeout:         s.Timeout,
		isBusinessError: s.IsBusinessError,
		observer:        observer,
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: s.Name,
		// 半开状态只允许一次试探调用
		MaxRequests: 1,
		Interval:    s.Window,
		Timeout:     s.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failurePercentage := float64(counts.TotalFailures) / float64(counts.Requests) * 100
			return failurePercentage >= s.ErrorThresholdPercentage
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observer.StateChanged(name, toState(from), toState(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || s.IsBusinessError(err)
		},
	})
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State { return toState(b.cb.State()) }

// Snapshot 是熔断器当前状态的只读视图。
type Snapshot struct {
	Name                string `json:"name"`
	State               State  `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"totalFailures"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
}

func (b *Breaker) Snapshot() Snapshot {
	counts := b.cb.Counts()
	return Snapshot{
		Name:                b.name,
		State:               b.State(),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

// Execute 在熔断保护下执行 fn。fn 收到的 ctx 带有熔断器的超时。
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call 是 Execute 的带返回值版本。
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	res, err := b.cb.Execute(func() (interface{}, error) {
		return invoke(ctx, b, fn)
	})

	outcome := b.classify(err)
	b.observer.CallFinished(b.name, outcome, time.Since(start))

	if outcome == OutcomeRejected {
		return zero, &UnavailableError{Name: b.name, State: b.State()}
	}
	if err != nil {
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// invoke 带超时执行 fn。超时后立即返回，fn 所在的 goroutine 会通过 ctx 取消感知到放弃。
func invoke[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-callCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Name: b.name, Timeout: b.timeout}
	}
}

func (b *Breaker) classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return OutcomeRejected
	case errors.Is(err, ErrCallTimeout):
		return OutcomeTimeout
	case b.isBusinessError(err):
		return OutcomeBusinessError
	default:
		return OutcomeFailure
	}
}
