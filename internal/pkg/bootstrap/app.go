// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/pkg/nacos"
	"cloudretail/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
	// OnClose 登记一个在关停时执行的清理函数，执行顺序与 Closers 相同
	OnClose func(closer func(ctx context.Context) error)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Config      Config
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx) error
	// Closers 在 HTTP 服务器关闭后按注册的逆序执行（后进先出）
	Closers []func(ctx context.Context) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := info.Config
	logger.Init(info.ServiceName, cfg.App.LogLevel)

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Addrs != "" {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			_ = tp.Shutdown(context.Background())
			return fmt.Errorf("failed to initialize nacos client: %w", err)
		}
		if ip, err = GetOutboundIP(); err != nil {
			namingClient.Close()
			_ = tp.Shutdown(context.Background())
			return fmt.Errorf("failed to get outbound IP address: %w", err)
		}
	}

	var registry serviceRegistry
	if namingClient != nil {
		registry = namingClient
	}
	return run(info, appRuntime{tracer: tp, nacos: namingClient, registry: registry, ip: ip})
}

// serviceRegistry 是服务注册中心，*nacos.Client 实现了它
type serviceRegistry interface {
	RegisterServiceInstance(serviceName, ip string, port int) error
	DeregisterServiceInstance(serviceName, ip string, port int) error
	Close()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type appRuntime struct {
	tracer   shutdowner
	nacos    *nacos.Client
	registry serviceRegistry
	ip       string
}

func run(info AppInfo, rt appRuntime) error {
	cfg := info.Config

	closers := append([]func(ctx context.Context) error(nil), info.Closers...)
	runClosers := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("Error closing resource")
			}
		}
	}
	// release 释放 HTTP 服务器之外的全部资源
	release := func(ctx context.Context) {
		if rt.registry != nil {
			rt.registry.Close()
		}
		runClosers(ctx)
		if err := rt.tracer.Shutdown(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Error shutting down tracer provider")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		appCtx := AppCtx{
			Mux:     mux,
			Nacos:   rt.nacos,
			OnClose: func(c func(ctx context.Context) error) { closers = append(closers, c) },
		}
		if err := info.RegisterHandlers(appCtx); err != nil {
			release(context.Background())
			return fmt.Errorf("failed to register handlers: %w", err)
		}
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 先注册再启动监听，注册失败时还没有需要停止的 goroutine
	if rt.registry != nil {
		if err := rt.registry.RegisterServiceInstance(info.ServiceName, rt.ip, cfg.App.Port); err != nil {
			release(context.Background())
			return fmt.Errorf("failed to register service to nacos: %w", err)
		}
		logger.Ctx(context.Background()).Info().Str("ip", rt.ip).Msgf("✅ Service '%s' registered to Nacos", info.ServiceName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Ctx(gctx).Info().Int("port", cfg.App.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Ctx(context.Background()).Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 关停顺序：先从注册中心摘除，再停止接收请求，最后释放基础设施
		if rt.registry != nil {
			if err := rt.registry.DeregisterServiceInstance(info.ServiceName, rt.ip, cfg.App.Port); err != nil {
				logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Ctx(shutdownCtx).Error().Err(err).Msg("Error shutting down http server")
		}
		release(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Ctx(context.Background()).Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return nil
}

// GetOutboundIP 返回本机用于出站连接的 IP，用于服务注册。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
