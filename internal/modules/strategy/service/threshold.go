package service

import "sort"

// thresholdState — порог CVD-прокси: фиксированный скаляр либо скользящий
// перцентиль собственной истории. Окно ограничено lookback, сортировка
// поддерживается вставкой, без пересортировки на каждом баре.
type thresholdState struct {
	dynamic  bool
	fixed    float64
	pct      float64
	lookback int

	fifo   []float64 // порядок поступления, для вытеснения старых
	sorted []float64
}

func newThreshold(dynamic bool, fixed, pct float64, lookback int) *thresholdState {
	if lookback <= 0 {
		lookback = 1
	}
	return &thresholdState{
		dynamic:  dynamic,
		fixed:    fixed,
		pct:      pct,
		lookback: lookback,
		fifo:     make([]float64, 0, lookback),
		sorted:   make([]float64, 0, lookback),
	}
}

// Push добавляет свежее значение CVD-прокси в окно выборки.
// Для фиксированного порога выборка не ведётся.
func (t *thresholdState) Push(v float64) {
	if !t.dynamic {
		return
	}
	if len(t.fifo) >= t.lookback {
		old := t.fifo[0]
		t.fifo = t.fifo[1:]
		i := sort.SearchFloat64s(t.sorted, old)
		t.sorted = append(t.sorted[:i], t.sorted[i+1:]...)
	}
	t.fifo = append(t.fifo, v)
	i := sort.SearchFloat64s(t.sorted, v)
	t.sorted = append(t.sorted, 0)
	copy(t.sorted[i+1:], t.sorted[i:])
	t.sorted[i] = v
}

// Value — действующий порог. Для динамики — linear-перцентиль окна.
func (t *thresholdState) Value() float64 {
	if !t.dynamic {
		return t.fixed
	}
	return percentileSorted(t.sorted, t.pct)
}

func (t *thresholdState) Len() int { return len(t.fifo) }
