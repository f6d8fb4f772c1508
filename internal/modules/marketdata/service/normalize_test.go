package service

import (
	"testing"
	"time"

	"parity_bot/internal/models"
)

func validRaw() models.RawCandle {
	return models.RawCandle{
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		OpenTime:  1704067200000,
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100.5,
		Volume:    10,
	}
}

func TestNormalizeValid(t *testing.T) {
	c, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Timeframe != "M15" {
		t.Fatalf("timeframe=%q, want canonical M15", c.Timeframe)
	}
	if c.OpenTime.Location() != time.UTC {
		t.Fatalf("open time must be UTC")
	}
	if !c.OpenTime.Equal(time.UnixMilli(1704067200000)) {
		t.Fatalf("open time=%v", c.OpenTime)
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.RawCandle)
	}{
		{"no symbol", func(r *models.RawCandle) { r.Symbol = "" }},
		{"bad timeframe", func(r *models.RawCandle) { r.Timeframe = "M7" }},
		{"zero open_time", func(r *models.RawCandle) { r.OpenTime = 0 }},
		{"negative open_time", func(r *models.RawCandle) { r.OpenTime = -5 }},
		{"zero price", func(r *models.RawCandle) { r.Close = 0 }},
		{"negative price", func(r *models.RawCandle) { r.Low = -1 }},
		{"high below low", func(r *models.RawCandle) { r.High = 98 }},
		{"negative volume", func(r *models.RawCandle) { r.Volume = -1 }},
	}

	for _, tc := range cases {
		raw := validRaw()
		tc.mutate(&raw)
		if _, err := Normalize(raw); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestNormalizeZeroVolumeAllowed(t *testing.T) {
	raw := validRaw()
	raw.Volume = 0
	if _, err := Normalize(raw); err != nil {
		t.Fatalf("zero volume is valid: %v", err)
	}
}
