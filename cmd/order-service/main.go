// cmd/order-service/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"cloudretail/internal/pkg/bootstrap"
	"cloudretail/internal/pkg/breaker"
	"cloudretail/internal/pkg/httpclient"
	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/pkg/metrics"
	"cloudretail/internal/pkg/mq"
	"cloudretail/internal/service/order/application"
	"cloudretail/internal/service/order/application/saga"
	"cloudretail/internal/service/order/domain"
	"cloudretail/internal/service/order/domain/port"
	"cloudretail/internal/service/order/infrastructure"
	"cloudretail/internal/service/order/infrastructure/adapter"
	"cloudretail/internal/service/order/interfaces"
)

const (
	serviceName      = "order-service"
	metricsNamespace = "order"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig(getEnv("CONFIG_FILE", "configs/order-service.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			return registerOrderService(appCtx, cfg)
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("order-service exited with error")
	}
}

func registerOrderService(appCtx bootstrap.AppCtx, cfg bootstrap.Config) error {
	ctx := context.Background()
	tracer := otel.Tracer(serviceName)
	collector := metrics.NewCollector(metricsNamespace)

	// 1. 熔断器：进程内每个下游一个，启动时创建
	registry := breaker.NewRegistry(breaker.Observers{collector, breaker.LogObserver{}})
	inventoryCB, err := registry.Register(breakerSettings(adapter.InventoryServiceName, cfg.Breakers.Inventory))
	if err != nil {
		return err
	}
	paymentCB, err := registry.Register(breakerSettings(adapter.PaymentServiceName, cfg.Breakers.Payment))
	if err != nil {
		return err
	}

	// 2. 下游服务地址：配置了 nacos 时走服务发现，否则使用静态地址
	var resolver httpclient.Resolver = httpclient.StaticResolver{
		adapter.InventoryServiceName: cfg.Services.Inventory.BaseURL,
		adapter.PaymentServiceName:   cfg.Services.Payment.BaseURL,
	}
	if appCtx.Nacos != nil {
		resolver = aliasResolver{
			next: appCtx.Nacos,
			names: map[string]string{
				adapter.InventoryServiceName: cfg.Services.Inventory.Name,
				adapter.PaymentServiceName:   cfg.Services.Payment.Name,
			},
		}
	}
	httpClient := httpclient.NewClient(tracer, resolver)

	// 3. 仓储
	repo, err := newOrderRepository(cfg, appCtx)
	if err != nil {
		return err
	}

	// 4. 事件发布：有 broker 时写 kafka，否则只打日志
	var sink port.EventSink = adapter.LogEventSink{}
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		kafkaSink := adapter.NewKafkaEventSink(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers))
		appCtx.OnClose(func(context.Context) error { return kafkaSink.Close() })
		sink = kafkaSink
	} else {
		logger.Ctx(ctx).Warn().Msg("no kafka brokers configured, events are only logged")
	}
	publisher := application.NewEventPublisher(sink, cfg.Infra.Kafka.Topics, cfg.Infra.Kafka.DefaultTopic, collector)

	// 5. 编排器与应用服务
	orchestrator := saga.NewOrchestrator(saga.Dependencies{
		Repo:                repo,
		Inventory:           adapter.NewInventoryHTTPAdapter(httpClient),
		Payment:             adapter.NewPaymentHTTPAdapter(httpClient),
		Publisher:           publisher,
		InventoryBreaker:    inventoryCB,
		PaymentBreaker:      paymentCB,
		Tracer:              tracer,
		Recorder:            collector,
		CompensationTimeout: cfg.Breakers.Inventory.Timeout,
	})
	service := application.NewOrderApplicationService(repo, orchestrator, tracer)

	interfaces.NewOrderHandler(service, registry, collector.Handler()).RegisterRoutes(appCtx.Mux)
	logger.Ctx(ctx).Info().Str("storage", cfg.Storage.Driver).Msg("✅ order-service wired")
	return nil
}

func newOrderRepository(cfg bootstrap.Config, appCtx bootstrap.AppCtx) (domain.OrderRepository, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return infrastructure.NewMemoryOrderRepository(), nil
	case "mysql":
		db, err := infrastructure.NewMySQL(infrastructure.MySQLOptions{
			DSN:          cfg.Infra.MySQL.DSN,
			MaxOpenConns: cfg.Infra.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.Infra.MySQL.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		appCtx.OnClose(func(context.Context) error { return closeDB(db) })
		return infrastructure.NewGormOrderRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func breakerSettings(name string, c bootstrap.BreakerConfig) breaker.Settings {
	return breaker.Settings{
		Name:                     name,
		Timeout:                  c.Timeout,
		ErrorThresholdPercentage: c.ErrorThresholdPercentage,
		MinRequests:              c.MinRequests,
		Window:                   c.Window,
		ResetTimeout:             c.ResetTimeout,
		IsBusinessError:          domain.IsBusinessRejection,
	}
}

// aliasResolver 把适配器使用的逻辑服务名映射成 nacos 中注册的服务名
type aliasResolver struct {
	next  httpclient.Resolver
	names map[string]string
}

func (r aliasResolver) Resolve(ctx context.Context, service string) (string, error) {
	if name, ok := r.names[service]; ok && name != "" {
		service = name
	}
	return r.next.Resolve(ctx, service)
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
