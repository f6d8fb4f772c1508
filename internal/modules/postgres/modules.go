package postgres

import (
	"context"
	"fmt"

	"parity_bot/internal/modules/config"
	"parity_bot/pkg/db"

	"go.uber.org/fx"
)

// Module отдаёт пул постгреса для персистентного дедупа.
// Пустой db_dsn — валидный режим: менеджер nil, дедуп живёт в памяти.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
