package service

import (
	"context"
	"fmt"
	"time"

	"parity_bot/internal/models"
	"parity_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

const createDispatchKeys = `
CREATE TABLE IF NOT EXISTS dispatch_keys (
    symbol       TEXT        NOT NULL,
    timeframe    TEXT        NOT NULL,
    bar_close_ms BIGINT      NOT NULL,
    dispatched_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (symbol, timeframe, bar_close_ms)
)`

// PgKeyStore — ключи дедупа в постгресе, переживают рестарт процесса.
type PgKeyStore struct {
	tm db.TxManager
}

func NewPgKeyStore(tm db.TxManager) *PgKeyStore {
	return &PgKeyStore{tm: tm}
}

// EnsureSchema — зовём на старте до Restore.
func (s *PgKeyStore) EnsureSchema(ctx context.Context) error {
	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, createDispatchKeys)
		return err
	})
}

func (s *PgKeyStore) Load(ctx context.Context) (keys []models.DispatchKey, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgKeyStore.Load: %w", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx,
		`SELECT symbol, timeframe, bar_close_ms FROM dispatch_keys`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k models.DispatchKey
		if err = rows.Scan(&k.Symbol, &k.Timeframe, &k.BarCloseMs); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PgKeyStore) Mark(ctx context.Context, key models.DispatchKey, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgKeyStore.Mark: %w", err)
		}
	}()

	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO dispatch_keys (symbol, timeframe, bar_close_ms, dispatched_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT DO NOTHING`,
			key.Symbol, key.Timeframe, key.BarCloseMs, at)
		return err
	})
}
