// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog logger，每个服务在 main 中调用一次。
func Init(serviceName, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回与 ctx 绑定的 logger。
// 如果 ctx 中没有 logger，则回退到全局 logger；如果存在有效的 span，会附带 trace_id。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base(ctx)

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}

	withTrace := l.With().Str("trace_id", spanCtx.TraceID().String()).Logger()
	return &withTrace
}

// WithRequestID 把带 request_id 的 logger 放入 ctx，供下游 handler 使用。
// ctx 中的 logger 不带 trace_id，trace_id 由 Ctx 按当前 span 追加，每行只出现一次。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := base(ctx)
	if requestID != "" {
		withID := l.With().Str("request_id", requestID).Logger()
		l = &withID
	}
	return l.WithContext(ctx)
}

func base(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}
