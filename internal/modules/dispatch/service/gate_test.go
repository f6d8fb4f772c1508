package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"parity_bot/internal/models"
	"parity_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func longSig(symbol, tf string, closeMs int64) models.Signal {
	return models.Signal{
		Symbol:     symbol,
		Timeframe:  tf,
		Side:       models.SideLong,
		Source:     models.SourceBinance,
		EntryPrice: 100,
		BarCloseMs: closeMs,
	}
}

func TestGateAcceptsOncePerKey(t *testing.T) {
	g := NewGate(nil)
	ctx := context.Background()

	if got := g.Offer(ctx, longSig("BTCUSDT", "M15", 1000)); got != Accepted {
		t.Fatalf("first offer=%v, want accepted", got)
	}
	if got := g.Offer(ctx, longSig("BTCUSDT", "M15", 1000)); got != Duplicate {
		t.Fatalf("second offer=%v, want duplicate", got)
	}
	// другой бар — другой ключ
	if got := g.Offer(ctx, longSig("BTCUSDT", "M15", 2000)); got != Accepted {
		t.Fatalf("new bar close must be accepted")
	}
	// другой символ — другой ключ
	if got := g.Offer(ctx, longSig("ETHUSDT", "M15", 1000)); got != Accepted {
		t.Fatalf("other symbol must be accepted")
	}
}

func TestGateNormalizesTimeframeNotation(t *testing.T) {
	g := NewGate(nil)
	ctx := context.Background()

	// webhook шлёт "15m", фид — "M15"; это один и тот же бар
	if got := g.Offer(ctx, longSig("BTCUSDT", "15m", 1000)); got != Accepted {
		t.Fatalf("first notation must be accepted")
	}
	if got := g.Offer(ctx, longSig("BTCUSDT", "M15", 1000)); got != Duplicate {
		t.Fatalf("same bar in canonical notation must dedupe")
	}
	if !g.Seen(models.DispatchKey{Symbol: "BTCUSDT", Timeframe: "15m", BarCloseMs: 1000}) {
		t.Fatalf("Seen must match through normalization")
	}
}

func TestGatePassesSignalsWithoutKey(t *testing.T) {
	g := NewGate(nil)
	ctx := context.Background()

	// без метки закрытия дедупить не по чему
	for i := 0; i < 3; i++ {
		if got := g.Offer(ctx, longSig("BTCUSDT", "M15", 0)); got != Accepted {
			t.Fatalf("keyless signal %d must pass", i)
		}
	}
}

func TestGateConcurrentOffersSingleWinner(t *testing.T) {
	g := NewGate(nil)
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Offer(ctx, longSig("BTCUSDT", "M15", 5000))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, r := range results {
		if r == Accepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted=%d, want exactly 1", accepted)
	}
}

type memStore struct {
	mu   sync.Mutex
	keys []models.DispatchKey
}

func (s *memStore) Load(context.Context) ([]models.DispatchKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DispatchKey(nil), s.keys...), nil
}

func (s *memStore) Mark(_ context.Context, key models.DispatchKey, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func TestGateRestoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	g1 := NewGate(store)
	if got := g1.Offer(ctx, longSig("BTCUSDT", "M15", 1000)); got != Accepted {
		t.Fatalf("first offer must be accepted")
	}

	// "рестарт": новый гейт на том же сторе
	g2 := NewGate(store)
	if err := g2.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if got := g2.Offer(ctx, longSig("BTCUSDT", "M15", 1000)); got != Duplicate {
		t.Fatalf("restored gate must dedupe persisted key, got %v", got)
	}
}
