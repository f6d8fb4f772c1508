package marketdata

import (
	"context"

	"parity_bot/internal/modules/marketdata/service"

	"go.uber.org/fx"
)

// Module поднимает хаб свечей. Фиды и webhook-сервер подключаются к нему
// через Submit, всё остальное (детекция закрытия, движок, диспетчер) — внутри.
func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(service.NewHub),
		fx.Invoke(func(lc fx.Lifecycle, h *service.Hub) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					h.Start(runCtx)
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
