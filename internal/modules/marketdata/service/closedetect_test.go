package service

import (
	"os"
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

func candleAt(openTime time.Time, close float64) models.Candle {
	return models.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: "M15",
		OpenTime:  openTime,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     close,
		Volume:    10,
	}
}

func TestDetectorEmitsOncePerBar(t *testing.T) {
	det, err := NewDetector("M15")
	if err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, ok := det.Observe(candleAt(t0, 100.2)); ok {
		t.Fatalf("first candle must only seed state")
	}

	closed, ok := det.Observe(candleAt(t0.Add(15*time.Minute), 100.4))
	if !ok {
		t.Fatalf("newer open_time must close the previous bar")
	}
	if !closed.Candle.OpenTime.Equal(t0) {
		t.Fatalf("closed wrong bar: %v", closed.Candle.OpenTime)
	}
	if !closed.CloseTime.Equal(t0.Add(15 * time.Minute)) {
		t.Fatalf("close time=%v, want open+tf", closed.CloseTime)
	}
	if closed.BarCloseMs() != t0.Add(15*time.Minute).UnixMilli() {
		t.Fatalf("BarCloseMs mismatch")
	}
}

func TestDetectorSnapshotRefresh(t *testing.T) {
	det, _ := NewDetector("M15")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	det.Observe(candleAt(t0, 100.1))
	// тот же open_time — обновление ещё открытого бара
	if _, ok := det.Observe(candleAt(t0, 100.9)); ok {
		t.Fatalf("snapshot refresh must not close the bar")
	}

	closed, ok := det.Observe(candleAt(t0.Add(15*time.Minute), 101))
	if !ok {
		t.Fatalf("expected close")
	}
	if closed.Candle.Close != 100.9 {
		t.Fatalf("closed with stale snapshot: close=%v, want 100.9", closed.Candle.Close)
	}
}

func TestDetectorDropsStale(t *testing.T) {
	det, _ := NewDetector("M15")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	det.Observe(candleAt(t0, 100))
	if _, ok := det.Observe(candleAt(t0.Add(15*time.Minute), 101)); !ok {
		t.Fatalf("expected close")
	}
	// прошлое после закрытия — молча в дроп, без повторной эмиссии
	if _, ok := det.Observe(candleAt(t0, 99)); ok {
		t.Fatalf("stale candle must not emit")
	}
	if _, ok := det.Observe(candleAt(t0.Add(-15*time.Minute), 99)); ok {
		t.Fatalf("older candle must not emit")
	}

	pending, has := det.Pending()
	if !has || !pending.OpenTime.Equal(t0.Add(15*time.Minute)) {
		t.Fatalf("pending bar corrupted by stale input: %+v", pending)
	}
}

func TestDetectorGapSkipsForward(t *testing.T) {
	det, _ := NewDetector("M15")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	det.Observe(candleAt(t0, 100))
	// дыра в фиде: следующая свеча через час, закрывается ровно один бар
	closed, ok := det.Observe(candleAt(t0.Add(time.Hour), 102))
	if !ok {
		t.Fatalf("expected close across the gap")
	}
	if !closed.Candle.OpenTime.Equal(t0) {
		t.Fatalf("wrong bar closed: %v", closed.Candle.OpenTime)
	}
}

func TestDetectorFlushBefore(t *testing.T) {
	det, err := NewDetector("M1")
	if err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2024, 1, 1, 0, 14, 0, 0, time.UTC)

	m1 := candleAt(t0, 100.2)
	m1.Timeframe = "M1"
	det.Observe(m1)

	// минутка ещё идёт — дожимать рано
	if _, ok := det.FlushBefore(t0.Add(30 * time.Second)); ok {
		t.Fatalf("in-progress bar must not flush")
	}

	closed, ok := det.FlushBefore(t0.Add(time.Minute))
	if !ok {
		t.Fatalf("fully elapsed bar must flush")
	}
	if !closed.CloseTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("flush close time=%v, want open+tf", closed.CloseTime)
	}
	if closed.Candle.Close != 100.2 {
		t.Fatalf("flushed wrong snapshot: close=%v", closed.Candle.Close)
	}

	// повторный дожим того же бара запрещён
	if _, ok := det.FlushBefore(t0.Add(time.Hour)); ok {
		t.Fatalf("double flush must not emit")
	}
	// снапшот эмиченного бара — уже история, в дроп
	refreshed := candleAt(t0, 999)
	refreshed.Timeframe = "M1"
	if _, ok := det.Observe(refreshed); ok {
		t.Fatalf("snapshot of a flushed bar must not emit")
	}

	// опоздавший закрывающий фрейм двигает окно, но бар не дублирует
	next := candleAt(t0.Add(time.Minute), 100.4)
	next.Timeframe = "M1"
	if _, ok := det.Observe(next); ok {
		t.Fatalf("late closing frame must not re-emit a flushed bar")
	}
	pending, has := det.Pending()
	if !has || !pending.OpenTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("window did not advance after flush: %+v", pending)
	}

	// следующий бар живёт обычной жизнью
	closed, ok = det.Observe(candleAt(t0.Add(2*time.Minute), 100.6))
	if !ok || !closed.Candle.OpenTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("bar after flush must close normally: ok=%v %+v", ok, closed.Candle.OpenTime)
	}
}

func TestDetectorRejectsUnknownTimeframe(t *testing.T) {
	if _, err := NewDetector("M7"); err == nil {
		t.Fatalf("unknown timeframe must error")
	}
}
