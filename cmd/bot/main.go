package main

import (
	"context"
	"log"

	"parity_bot/internal/modules/binance_feed"
	"parity_bot/internal/modules/config"
	"parity_bot/internal/modules/dispatch"
	"parity_bot/internal/modules/marketdata"
	"parity_bot/internal/modules/metrics"
	"parity_bot/internal/modules/mt5_bridge"
	"parity_bot/internal/modules/postgres"
	"parity_bot/internal/modules/strategy"
	"parity_bot/internal/modules/telegram"
	"parity_bot/internal/modules/tv_bridge"
	"parity_bot/internal/runner"
	"parity_bot/pkg/logger"
	"parity_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "parity_bot"

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		metrics.Module(),
		telegram.Module(),
		strategy.Module(),
		dispatch.Module(),
		marketdata.Module(),
		binance_feed.Module(),
		tv_bridge.Module(),
		mt5_bridge.Module(),
		runner.Module(),
		fx.Invoke(initTracing),
	)
	app.Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.Jaeger.Host == "" {
		return
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		logger.Error("init tracer: %v", err)
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			closeTracer()
			return nil
		},
	})
}
