package service

import (
	"math"
	"sort"
)

// Чистые функции пайплайна. Ничего не мутируют — состояние меняет только
// update-путь symState.

// donchianAt — экстремумы канала по n барам, заканчивающимся на idx
// (включительно). ok=false, когда истории не хватает.
func donchianAt(highs, lows []float64, idx, n int) (dh, dl float64, ok bool) {
	if n <= 0 || idx+1 < n || idx >= len(highs) {
		return 0, 0, false
	}
	dh = maxSlice(highs[idx+1-n : idx+1])
	dl = minSlice(lows[idx+1-n : idx+1])
	return dh, dl, true
}

// channelLoc — положение close внутри канала, 0.5 при нулевой ширине.
func channelLoc(close, dh, dl float64) float64 {
	rng := dh - dl
	if rng > 0 {
		return (close - dl) / rng
	}
	return 0.5
}

// rollingMaxAt — максимум по n значениям, заканчивающимся на idx.
func rollingMaxAt(vals []float64, idx, n int) (float64, bool) {
	if n <= 0 || idx+1 < n || idx >= len(vals) {
		return 0, false
	}
	return maxSlice(vals[idx+1-n : idx+1]), true
}

// pivotLowConfirmed — подтверждённый pivot low: кандидат i-right строго
// уникальный минимум окна left+right+1. Возвращает индекс кандидата.
// Подтверждение возможно только спустя right баров после кандидата.
func pivotLowConfirmed(lows []float64, i, left, right int) (int, bool) {
	if i < left+right {
		return 0, false
	}
	piv := i - right
	w0 := piv - left
	w1 := piv + right
	if w0 < 0 || w1 >= len(lows) {
		return 0, false
	}
	window := lows[w0 : w1+1]
	mn := minSlice(window)
	if lows[piv] != mn {
		return 0, false
	}
	cnt := 0
	for _, v := range window {
		if v == mn {
			cnt++
		}
	}
	if cnt != 1 {
		return 0, false
	}
	return piv, true
}

// percentileLinear — перцентиль с линейной интерполяцией (как numpy linear).
func percentileLinear(vals []float64, pct float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return percentileSorted(sorted, pct)
}

// percentileSorted — то же, но по уже отсортированному окну.
func percentileSorted(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[n-1]
	}
	pos := pct / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// trueRange — TR бара с учётом предыдущего close (NaN prevClose = первый бар).
func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if !math.IsNaN(prevClose) {
		tr = math.Max(tr, math.Abs(high-prevClose))
		tr = math.Max(tr, math.Abs(low-prevClose))
	}
	return tr
}

// WilderATR — ATR по Уайлдеру на готовых срезах OHLC. Используется раннером
// как подсказка для SL/TP, когда сигнал пришёл без собственного ATR.
func WilderATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(highs) < 2 || len(highs) != len(lows) || len(highs) != len(closes) {
		return 0
	}
	atr := newRMA(period)
	prevClose := math.NaN()
	for i := range highs {
		atr.Update(trueRange(highs[i], lows[i], prevClose))
		prevClose = closes[i]
	}
	if !atr.Ready() {
		return 0
	}
	return atr.Value()
}

func maxSlice(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minSlice(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
