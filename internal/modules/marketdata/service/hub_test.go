package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	dispatchsvc "parity_bot/internal/modules/dispatch/service"
	"parity_bot/internal/modules/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeEngine сигналит на каждом закрытом баре рабочего TF.
type fakeEngine struct {
	panicOn string
}

func (f *fakeEngine) OnBarClose(bar models.ClosedBar) (models.Signal, bool, bool) {
	if bar.Candle.Symbol == f.panicOn {
		panic("boom")
	}
	if bar.Candle.Timeframe != "M15" {
		return models.Signal{}, false, false
	}
	return models.Signal{
		Symbol:     bar.Candle.Symbol,
		Timeframe:  bar.Candle.Timeframe,
		Side:       models.SideLong,
		Source:     models.SourceBinance,
		EntryPrice: bar.Candle.Close,
		BarCloseMs: bar.BarCloseMs(),
	}, true, false
}

func (f *fakeEngine) IsReady(string) bool { return true }
func (f *fakeEngine) Dump(string) string  { return "fake" }
func (f *fakeEngine) Name() string        { return "fake" }

func newTestHub(t *testing.T, eng *fakeEngine) (*Hub, chan models.Signal, *metrics.Metrics, context.CancelFunc) {
	t.Helper()
	cfg := &config.Config{Timeframe: "M15", Symbols: []string{"BTCUSDT"}}
	m := metrics.New(prometheus.NewRegistry())
	out := make(chan models.Signal, 16)
	disp := dispatchsvc.NewDispatcher(dispatchsvc.NewGate(nil), out, m, nil)

	h, err := NewHub(cfg, eng, disp, m, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.Start(ctx)
	return h, out, m, cancel
}

func rawAt(symbol string, openMs int64) models.RawCandle {
	return models.RawCandle{
		Symbol:    symbol,
		Timeframe: "15m",
		OpenTime:  openMs,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100.5,
		Volume:    10,
	}
}

func waitSignal(t *testing.T, out chan models.Signal) models.Signal {
	t.Helper()
	select {
	case sig := <-out:
		return sig
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for signal")
		return models.Signal{}
	}
}

func TestHubRoutesClosedBarToDispatcher(t *testing.T) {
	h, out, _, cancel := newTestHub(t, &fakeEngine{})
	defer cancel()

	base := int64(1704067200000)
	h.Submit(rawAt("BTCUSDT", base))               // сеет
	h.Submit(rawAt("BTCUSDT", base+15*60*1000))    // закрывает первый бар

	sig := waitSignal(t, out)
	if sig.Symbol != "BTCUSDT" {
		t.Fatalf("signal symbol=%q", sig.Symbol)
	}
	if sig.BarCloseMs != base+15*60*1000 {
		t.Fatalf("bar close=%d, want %d", sig.BarCloseMs, base+15*60*1000)
	}
}

func TestHubDropsMalformed(t *testing.T) {
	h, out, m, cancel := newTestHub(t, &fakeEngine{})
	defer cancel()

	bad := rawAt("BTCUSDT", 1704067200000)
	bad.High = 1 // high < low
	h.Submit(bad)

	if got := testutil.ToFloat64(m.MalformedTotal); got != 1 {
		t.Fatalf("malformed counter=%v, want 1", got)
	}
	select {
	case sig := <-out:
		t.Fatalf("malformed candle produced a signal: %+v", sig)
	case <-time.After(100 * time.Millisecond):
	}
}

// recordEngine запоминает порядок, в котором до движка доходят закрытые бары.
type recordEngine struct {
	mu   sync.Mutex
	seen []string // "<tf>@<close_ms>"
}

func (r *recordEngine) OnBarClose(bar models.ClosedBar) (models.Signal, bool, bool) {
	r.mu.Lock()
	r.seen = append(r.seen, fmt.Sprintf("%s@%d", bar.Candle.Timeframe, bar.BarCloseMs()))
	r.mu.Unlock()
	return models.Signal{}, false, false
}

func (r *recordEngine) IsReady(string) bool { return true }
func (r *recordEngine) Dump(string) string  { return "record" }
func (r *recordEngine) Name() string        { return "record" }

func (r *recordEngine) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

// Стримовый порядок на границе бара: фрейм нового рабочего бара приходит
// раньше закрывающего фрейма последней минутки. Минутка обязана дойти до
// движка первой, иначе оценка бара идёт по неполному CVD-окну.
func TestHubFlushesFinalMinuteBeforeTFEval(t *testing.T) {
	eng := &recordEngine{}
	cfg := &config.Config{Timeframe: "M15", Symbols: []string{"BTCUSDT"}}
	m := metrics.New(prometheus.NewRegistry())
	out := make(chan models.Signal, 16)
	disp := dispatchsvc.NewDispatcher(dispatchsvc.NewGate(nil), out, m, nil)

	h, err := NewHub(cfg, eng, disp, m, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	base := int64(1704067200000)
	minuteMs := int64(60 * 1000)
	tfMs := int64(15 * 60 * 1000)

	// минутки рабочего бара; последняя (00:14) остаётся незакрытой
	for n := int64(0); n < 15; n++ {
		raw := rawAt("BTCUSDT", base+n*minuteMs)
		raw.Timeframe = "1m"
		h.Submit(raw)
	}
	h.Submit(rawAt("BTCUSDT", base))      // рабочий бар
	h.Submit(rawAt("BTCUSDT", base+tfMs)) // его закрывающий фрейм

	wantMinute := fmt.Sprintf("M1@%d", base+tfMs)
	wantTF := fmt.Sprintf("M15@%d", base+tfMs)

	deadline := time.After(2 * time.Second)
	for {
		seen := eng.snapshot()
		iMin, iTF := -1, -1
		for i, s := range seen {
			switch s {
			case wantMinute:
				iMin = i
			case wantTF:
				iTF = i
			}
		}
		if iTF >= 0 {
			if iMin < 0 {
				t.Fatalf("TF bar evaluated without its final minute: %v", seen)
			}
			if iMin > iTF {
				t.Fatalf("final minute arrived after TF eval: %v", seen)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("TF bar was never evaluated: %v", eng.snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHubPanicIsolatedPerSymbol(t *testing.T) {
	h, out, m, cancel := newTestHub(t, &fakeEngine{panicOn: "ETHUSDT"})
	defer cancel()

	base := int64(1704067200000)
	// паникующий символ
	h.Submit(rawAt("ETHUSDT", base))
	h.Submit(rawAt("ETHUSDT", base+15*60*1000))
	// здоровый символ продолжает работать
	h.Submit(rawAt("BTCUSDT", base))
	h.Submit(rawAt("BTCUSDT", base+15*60*1000))

	sig := waitSignal(t, out)
	if sig.Symbol != "BTCUSDT" {
		t.Fatalf("expected healthy symbol to signal, got %q", sig.Symbol)
	}

	deadline := time.After(2 * time.Second)
	for testutil.ToFloat64(m.EvalPanics) < 1 {
		select {
		case <-deadline:
			t.Fatalf("panic was not recovered/counted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
