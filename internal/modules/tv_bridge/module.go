package tv_bridge

import (
	"context"

	"parity_bot/internal/modules/config"
	"parity_bot/internal/modules/tv_bridge/service"

	"go.uber.org/fx"
)

// Module — webhook-мост. Поднимается только в tv_master при включённом бридже.
func Module() fx.Option {
	return fx.Module("tv_bridge",
		fx.Provide(service.NewServer),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *service.Server) {
			if cfg.Mode != config.ModeTVMaster || !cfg.TVBridge.Enabled {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					s.Start()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return s.Stop(ctx)
				},
			})
		}),
	)
}
