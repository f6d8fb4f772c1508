package metrics

import (
	"context"
	"fmt"
	"net/http"

	"parity_bot/internal/modules/config"
	"parity_bot/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module поднимает реестр и admin-эндпоинт /metrics.
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			func() *prometheus.Registry { return prometheus.NewRegistry() },
			func(reg *prometheus.Registry) *Metrics { return New(reg) },
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry) {
			if cfg.Service.AdminPort <= 0 {
				return
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{
				Addr:    fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.AdminPort),
				Handler: mux,
			}
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
							logger.Error("admin server: %v", err)
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
