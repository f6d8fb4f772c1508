package dispatch

import (
	"context"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/dispatch/service"
	"parity_bot/pkg/db"
	"parity_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module собирает шлюз дедупа. Персистентность включается наличием базы:
// без DSN работаем с in-memory набором ключей (гарантия в рамках одного запуска).
func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(
			func(tm *db.PgTxManager) *service.PgKeyStore {
				if tm == nil {
					return nil
				}
				return service.NewPgKeyStore(tm)
			},
			func(store *service.PgKeyStore) *service.Gate {
				if store == nil {
					logger.Info("dispatch gate: in-memory only (no db_dsn)")
					return service.NewGate(nil)
				}
				return service.NewGate(store)
			},
			service.NewDispatcher,
			func() chan models.Signal {
				// общий буфер сигналов для раннера
				return make(chan models.Signal, 64)
			},
			func(ch chan models.Signal) chan<- models.Signal { return ch },
		),
		fx.Invoke(func(lc fx.Lifecycle, g *service.Gate, store *service.PgKeyStore) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if store != nil {
						if err := store.EnsureSchema(ctx); err != nil {
							return err
						}
					}
					return g.Restore(ctx)
				},
			})
		}),
	)
}
