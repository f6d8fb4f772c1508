package service

import (
	"math"
	"testing"
)

func TestDonchianAt(t *testing.T) {
	highs := []float64{10, 12, 11, 15, 14}
	lows := []float64{9, 8, 10, 12, 13}

	if _, _, ok := donchianAt(highs, lows, 2, 4); ok {
		t.Fatalf("donchian must be undefined while history is short")
	}

	dh, dl, ok := donchianAt(highs, lows, 3, 4)
	if !ok {
		t.Fatalf("donchian must be defined at idx=3 n=4")
	}
	if dh != 15 || dl != 8 {
		t.Fatalf("donchian got dh=%v dl=%v, want 15/8", dh, dl)
	}

	dh, dl, _ = donchianAt(highs, lows, 4, 3)
	if dh != 15 || dl != 10 {
		t.Fatalf("donchian window must slide: got dh=%v dl=%v", dh, dl)
	}
}

func TestChannelLoc(t *testing.T) {
	if got := channelLoc(12, 20, 10); got != 0.2 {
		t.Fatalf("channelLoc=%v, want 0.2", got)
	}
	// нулевая ширина канала
	if got := channelLoc(10, 10, 10); got != 0.5 {
		t.Fatalf("degenerate channelLoc=%v, want 0.5", got)
	}
}

func TestPivotLowConfirmedLag(t *testing.T) {
	// минимум на индексе 3; left=right=2 => подтверждение не раньше индекса 5
	lows := []float64{5, 4, 3, 1, 2, 4, 5}

	for i := 0; i < 5; i++ {
		if _, ok := pivotLowConfirmed(lows, i, 2, 2); ok {
			t.Fatalf("pivot confirmed too early at i=%d", i)
		}
	}
	piv, ok := pivotLowConfirmed(lows, 5, 2, 2)
	if !ok {
		t.Fatalf("pivot must confirm at i=5")
	}
	if piv != 3 {
		t.Fatalf("pivot index=%d, want 3", piv)
	}
}

func TestPivotLowRequiresUniqueMin(t *testing.T) {
	// два равных минимума в окне — пивот не подтверждается
	lows := []float64{5, 1, 3, 1, 2, 4}
	if _, ok := pivotLowConfirmed(lows, 5, 2, 2); ok {
		t.Fatalf("tied minimum must not confirm a pivot")
	}
}

func TestRollingMaxAt(t *testing.T) {
	vals := []float64{1, 5, 3, 4, 2}
	got, ok := rollingMaxAt(vals, 4, 3)
	if !ok || got != 4 {
		t.Fatalf("rollingMax=%v ok=%v, want 4", got, ok)
	}
	if _, ok := rollingMaxAt(vals, 1, 3); ok {
		t.Fatalf("rollingMax must be undefined with short history")
	}
}

func TestPercentileLinearInterp(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	// позиция 75-го перцентиля: 0.75*3 = 2.25 -> 3 + 0.25*(4-3)
	got := percentileLinear(vals, 75)
	if math.Abs(got-3.25) > 1e-12 {
		t.Fatalf("percentile=%v, want 3.25", got)
	}
	if got := percentileLinear([]float64{7}, 50); got != 7 {
		t.Fatalf("single-element percentile=%v, want 7", got)
	}
}

func TestTrueRangeUsesPrevClose(t *testing.T) {
	if got := trueRange(12, 10, math.NaN()); got != 2 {
		t.Fatalf("first-bar TR=%v, want high-low", got)
	}
	// гэп вниз: prevClose выше high
	if got := trueRange(12, 10, 15); got != 5 {
		t.Fatalf("gap TR=%v, want 5", got)
	}
}

func TestWilderATR(t *testing.T) {
	highs := []float64{11, 12, 13, 12, 14}
	lows := []float64{9, 10, 11, 10, 12}
	closes := []float64{10, 11, 12, 11, 13}

	got := WilderATR(highs, lows, closes, 3)
	if got <= 0 {
		t.Fatalf("ATR must be positive, got %v", got)
	}

	// ручное RMA с alpha=1/3
	want := 2.0 // TR первого бара
	prev := closes[0]
	for i := 1; i < len(highs); i++ {
		tr := trueRange(highs[i], lows[i], prev)
		want = tr/3 + want*2/3
		prev = closes[i]
	}
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("ATR=%v, want %v", got, want)
	}

	if got := WilderATR(highs[:1], lows[:1], closes[:1], 3); got != 0 {
		t.Fatalf("short input must yield 0, got %v", got)
	}
}
