package runner

import (
	"context"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewTracker,
			NewRunner,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			r *Runner,
			tracker *Tracker,
			sigs chan models.Signal,
		) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if cfg.Tracker.Enabled {
						go tracker.Run(runCtx)
					}
					go func() {
						for {
							select {
							case <-runCtx.Done():
								return
							case sig := <-sigs:
								r.OnSignal(runCtx, sig)
							}
						}
					}()
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
