package models

import "time"

// RawCandle — сырая свеча из любого источника (REST poll, WS, терминал)
// до нормализации. Времена в миллисекундах эпохи, как отдаёт биржа.
type RawCandle struct {
	Symbol    string
	Timeframe string
	OpenTime  int64 // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Candle — нормализованная OHLCV свеча, ключ (symbol, timeframe).
// После закрытия бара неизменяема.
type Candle struct {
	Symbol    string
	Timeframe string
	OpenTime  time.Time // начало бара, UTC
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CloseTime — конец бара (начало + длительность таймфрейма).
func (c Candle) CloseTime(tf time.Duration) time.Time {
	return c.OpenTime.Add(tf)
}

// ClosedBar — подтверждённое закрытие: свеча стала историей и может
// участвовать в расчётах. Эмитится детектором ровно один раз.
type ClosedBar struct {
	Candle    Candle
	CloseTime time.Time
}

// BarCloseMs — ключевая метка закрытия бара для дедупликации.
func (b ClosedBar) BarCloseMs() int64 {
	return b.CloseTime.UnixMilli()
}
