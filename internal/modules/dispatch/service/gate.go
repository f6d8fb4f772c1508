package service

import (
	"context"
	"sync"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"
)

type Result string

const (
	Accepted  Result = "accepted"
	Duplicate Result = "duplicate"
)

// KeyStore — опциональная персистентность ключей дедупа: дожили до рестарта —
// не войдём второй раз по тому же бару.
type KeyStore interface {
	Load(ctx context.Context) ([]models.DispatchKey, error)
	Mark(ctx context.Context, key models.DispatchKey, at time.Time) error
}

// Gate — идемпотентный шлюз: на ключ (symbol, timeframe, bar_close_ms)
// проходит ровно один сигнал. Проверка и пометка — один атомарный шаг.
type Gate struct {
	mu    sync.Mutex
	seen  map[models.DispatchKey]time.Time
	store KeyStore // nil — дедуп только в памяти процесса
}

func NewGate(store KeyStore) *Gate {
	return &Gate{
		seen:  make(map[models.DispatchKey]time.Time),
		store: store,
	}
}

// Restore подтягивает ключи из стора; зовём один раз на старте.
func (g *Gate) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	keys, err := g.store.Load(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		g.seen[k] = time.Time{}
	}
	logger.Info("dispatch gate restored %d keys", len(keys))
	return nil
}

// Offer — первый вызов по ключу принят, все последующие duplicate.
// Сигнал без метки закрытия бара дедупить не по чему — пропускаем всегда.
func (g *Gate) Offer(ctx context.Context, sig models.Signal) Result {
	if sig.BarCloseMs <= 0 {
		return Accepted
	}
	key := normalizeKey(sig.Key())

	g.mu.Lock()
	if _, dup := g.seen[key]; dup {
		g.mu.Unlock()
		return Duplicate
	}
	now := time.Now().UTC()
	g.seen[key] = now
	g.mu.Unlock()

	if g.store != nil {
		// persist best-effort: сигнал уже принят, откатывать его из-за
		// недоступной базы не будем
		if err := g.store.Mark(ctx, key, now); err != nil {
			logger.Error("dispatch gate persist %v: %v", key, err)
		}
	}
	return Accepted
}

// Seen — есть ли уже запись по ключу (для тестов и диагностики).
func (g *Gate) Seen(key models.DispatchKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[normalizeKey(key)]
	return ok
}

// normalizeKey приводит таймфрейм к каноническому виду: "15m" от webhook и
// "M15" от фида должны дедупиться друг о друга.
func normalizeKey(k models.DispatchKey) models.DispatchKey {
	if tf, err := timeframe.Normalize(k.Timeframe); err == nil {
		k.Timeframe = tf
	}
	return k
}
