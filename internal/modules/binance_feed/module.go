package binance_feed

import (
	"context"

	"parity_bot/internal/modules/binance_feed/service"
	"parity_bot/internal/modules/config"

	"go.uber.org/fx"
)

// Module — фид от Binance. Активен только в режиме binance_master;
// в tv_master бары приходят из webhook-пейлоадов и опрашивать биржу незачем.
func Module() fx.Option {
	return fx.Module("binance_feed",
		fx.Provide(
			service.NewClient,
			service.NewPoller,
			service.NewWSStream,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, p *service.Poller, ws *service.WSStream) {
			if cfg.Mode != config.ModeBinanceMaster {
				return
			}
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go p.Run(runCtx)
					if cfg.Binance.UseWS {
						go ws.Run(runCtx)
					}
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
