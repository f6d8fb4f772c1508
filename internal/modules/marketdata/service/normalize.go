package service

import (
	"fmt"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/timeframe"
)

// Normalize приводит сырую свечу любого фида к единому виду.
// Мусор наружу не выходит: либо валидная свеча, либо ошибка.
func Normalize(raw models.RawCandle) (models.Candle, error) {
	if raw.Symbol == "" {
		return models.Candle{}, fmt.Errorf("candle without symbol")
	}
	tf, err := timeframe.Normalize(raw.Timeframe)
	if err != nil {
		return models.Candle{}, err
	}
	if raw.OpenTime <= 0 {
		return models.Candle{}, fmt.Errorf("candle %s: bad open_time %d", raw.Symbol, raw.OpenTime)
	}
	if raw.Open <= 0 || raw.High <= 0 || raw.Low <= 0 || raw.Close <= 0 {
		return models.Candle{}, fmt.Errorf("candle %s: non-positive price", raw.Symbol)
	}
	if raw.High < raw.Low {
		return models.Candle{}, fmt.Errorf("candle %s: high %.8f < low %.8f", raw.Symbol, raw.High, raw.Low)
	}
	if raw.Volume < 0 {
		return models.Candle{}, fmt.Errorf("candle %s: negative volume", raw.Symbol)
	}

	return models.Candle{
		Symbol:    raw.Symbol,
		Timeframe: tf,
		OpenTime:  time.UnixMilli(raw.OpenTime).UTC(),
		Open:      raw.Open,
		High:      raw.High,
		Low:       raw.Low,
		Close:     raw.Close,
		Volume:    raw.Volume,
	}, nil
}
