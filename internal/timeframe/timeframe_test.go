package timeframe

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"M15": "M15",
		"15m": "M15",
		"15M": "M15",
		"1h":  "H1",
		"H1":  "H1",
		"1d":  "D1",
		" 5m": "M5",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := Normalize("13m"); err == nil {
		t.Fatal("expected error for unsupported timeframe")
	}
	if _, err := Normalize(""); err == nil {
		t.Fatal("expected error for empty timeframe")
	}
}

func TestSecondsAndDuration(t *testing.T) {
	sec, err := Seconds("15m")
	if err != nil || sec != 900 {
		t.Fatalf("Seconds(15m) = %d, %v", sec, err)
	}
	d, err := Duration("H4")
	if err != nil || d != 4*time.Hour {
		t.Fatalf("Duration(H4) = %v, %v", d, err)
	}
}

func TestBinanceInterval(t *testing.T) {
	cases := map[string]string{
		"M1":  "1m",
		"M15": "15m",
		"1h":  "1h",
		"H12": "12h",
		"D1":  "1d",
	}
	for in, want := range cases {
		got, err := BinanceInterval(in)
		if err != nil {
			t.Fatalf("BinanceInterval(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("BinanceInterval(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("15m", "M15") {
		t.Fatal("15m should equal M15")
	}
	if Equal("15m", "M5") {
		t.Fatal("15m should not equal M5")
	}
}
