// cmd/inventory-service/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"cloudretail/internal/pkg/bootstrap"
	"cloudretail/internal/pkg/logger"
	"cloudretail/internal/service/inventory"
)

func main() {
	cfg, err := bootstrap.LoadConfig(getEnv("CONFIG_FILE", "configs/inventory-service.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: inventory.ServiceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Infra.Redis.Addr,
				Password: cfg.Infra.Redis.Password,
				DB:       cfg.Infra.Redis.DB,
			})
			appCtx.OnClose(func(context.Context) error { return client.Close() })

			ctx := context.Background()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Infra.Redis.Addr, err)
			}
			logger.Ctx(ctx).Info().Str("addr", cfg.Infra.Redis.Addr).Msg("✅ Connected to redis")

			inventory.NewHandler(inventory.NewRedisStore(client)).RegisterRoutes(appCtx.Mux)
			return nil
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("inventory-service exited with error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
