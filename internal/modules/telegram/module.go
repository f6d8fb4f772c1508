package telegram

import (
	"context"

	"parity_bot/internal/modules/config"
	dispatchsvc "parity_bot/internal/modules/dispatch/service"
	mdsvc "parity_bot/internal/modules/marketdata/service"
	"parity_bot/internal/modules/telegram/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewNotifier,

			// адаптеры под локальные интерфейсы потребителей
			func(n *service.Notifier) dispatchsvc.ServiceNotifier { return n },
			func(n *service.Notifier) mdsvc.ServiceNotifier { return n },
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, n *service.Notifier) {
			if !cfg.Telegram.NotifyStartup {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					mode := "LIVE"
					if cfg.Paper {
						mode = "PAPER"
					}
					n.SendF(ctx, "🤖 parity_bot запущен | mode=%s | %s | tf=%s",
						cfg.Mode, mode, cfg.Timeframe)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					n.Send(ctx, "🛑 parity_bot остановлен")
					return nil
				},
			})
		}),
	)
}
