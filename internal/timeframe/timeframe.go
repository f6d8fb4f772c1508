package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Поддерживаем обе нотации: терминальную ("M15","H1") и биржевую ("15m","1h").
// Канонический ключ — терминальный.

var tfSeconds = map[string]int64{
	"M1": 60, "M2": 120, "M3": 180, "M4": 240, "M5": 300, "M6": 360,
	"M10": 600, "M12": 720, "M15": 900, "M20": 1200, "M30": 1800,
	"H1": 3600, "H2": 7200, "H3": 10800, "H4": 14400, "H6": 21600,
	"H8": 28800, "H12": 43200,
	"D1": 86400, "W1": 604800,
}

// Normalize приводит таймфрейм к каноническому ключу ("15m" -> "M15").
func Normalize(tf string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(tf))
	if s == "" {
		return "", fmt.Errorf("timeframe is required")
	}
	if _, ok := tfSeconds[s]; ok {
		return s, nil
	}
	// "15M" / "1H" / "1D" / "1W" -> "M15" / "H1" / ...
	last := s[len(s)-1]
	if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
		key := fmt.Sprintf("%c%d", last, n)
		if _, ok := tfSeconds[key]; ok {
			return key, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe: %s", tf)
}

// Seconds — длительность бара в секундах.
func Seconds(tf string) (int64, error) {
	key, err := Normalize(tf)
	if err != nil {
		return 0, err
	}
	return tfSeconds[key], nil
}

// Duration — длительность бара.
func Duration(tf string) (time.Duration, error) {
	sec, err := Seconds(tf)
	if err != nil {
		return 0, err
	}
	return time.Duration(sec) * time.Second, nil
}

// BinanceInterval — "M15" -> "15m", "H1" -> "1h".
func BinanceInterval(tf string) (string, error) {
	key, err := Normalize(tf)
	if err != nil {
		return "", err
	}
	n := key[1:]
	switch key[0] {
	case 'M':
		return n + "m", nil
	case 'H':
		return n + "h", nil
	case 'D':
		return n + "d", nil
	case 'W':
		return n + "w", nil
	}
	return "", fmt.Errorf("unsupported timeframe: %s", tf)
}

// Equal — одинаковый ли таймфрейм в разных нотациях ("15m" == "M15").
func Equal(a, b string) bool {
	ka, errA := Normalize(a)
	kb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return ka == kb
}
