// cmd/payment-service/main.go
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cloudretail/internal/pkg/bootstrap"
	"cloudretail/internal/service/payment"
)

func main() {
	cfg, err := bootstrap.LoadConfig(getEnv("CONFIG_FILE", "configs/payment-service.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: payment.ServiceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) error {
			ledger := payment.NewLedger(decimal.NewFromFloat(cfg.App.PaymentLimit))
			payment.NewHandler(ledger).RegisterRoutes(appCtx.Mux)
			return nil
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("payment-service exited with error")
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
