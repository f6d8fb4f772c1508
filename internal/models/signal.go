package models

import "time"

// Side — только лонг, но оставляем тип как в остальных сервисах.
type Side string

const (
	SideNone Side = ""
	SideLong Side = "LONG"
)

// Источник решения: webhook (чужое решение) или собственный расчёт по фиду.
type SignalSource string

const (
	SourceTV      SignalSource = "TV"
	SourceBinance SignalSource = "BINANCE"
)

// Signal — решение "войти в лонг" на закрытом баре.
// На один (symbol, timeframe, bar close) диспатчится максимум один такой сигнал.
type Signal struct {
	Symbol    string
	Timeframe string
	Side      Side
	Source    SignalSource

	EntryPrice    float64
	PivotPrice    float64
	Trigger       float64
	ATR           float64 // подсказка для SL/TP; 0 — источник её не дал
	CVD           float64
	CVDThr        float64
	CVDOk         bool
	ConfirmTimeMs int64 // bar_close_ms - 1, как шлёт исходная стратегия
	BarCloseMs    int64

	Reason    string
	CreatedAt time.Time
}

// DispatchKey — ключ дедупликации сигнала.
type DispatchKey struct {
	Symbol     string
	Timeframe  string
	BarCloseMs int64
}

func (s Signal) Key() DispatchKey {
	return DispatchKey{Symbol: s.Symbol, Timeframe: s.Timeframe, BarCloseMs: s.BarCloseMs}
}
