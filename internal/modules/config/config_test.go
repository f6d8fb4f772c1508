package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestValidateMode(t *testing.T) {
	cfg := defaults()
	cfg.TVBridge.Secret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Mode = "mt5_master"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestValidateSecretRequired(t *testing.T) {
	cfg := defaults()
	cfg.TVBridge.Secret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: tv_bridge enabled without secret")
	}

	cfg.TVBridge.Enabled = false
	cfg.Mode = ModeBinanceMaster
	cfg.Symbols = []string{"BTCUSDT"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("binance_master without tv secret should validate: %v", err)
	}
}

func TestExpectedTF(t *testing.T) {
	cfg := defaults()
	cfg.Timeframe = "M15"
	if got := cfg.ExpectedTF(); got != "15m" {
		t.Fatalf("ExpectedTF = %q, want 15m", got)
	}
	cfg.TVBridge.ExpectedTF = "1h"
	if got := cfg.ExpectedTF(); got != "1h" {
		t.Fatalf("ExpectedTF override = %q, want 1h", got)
	}
}

func TestStrategyEnvOverrides(t *testing.T) {
	t.Setenv(minDivStrengthENV, "42.5")
	t.Setenv(cvdThresholdENV, "-10")

	cfg := defaults()
	applyEnv(cfg)
	if cfg.Strategy.MinDivStrength != 42.5 {
		t.Fatalf("min_div_strength=%v, want env override 42.5", cfg.Strategy.MinDivStrength)
	}
	if cfg.Strategy.CvdThreshold != -10 {
		t.Fatalf("cvd_threshold=%v, want env override -10", cfg.Strategy.CvdThreshold)
	}
}

func TestStrategyEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv(minDivStrengthENV, "not-a-number")

	cfg := defaults()
	applyEnv(cfg)
	if cfg.Strategy.MinDivStrength != 15.0 {
		t.Fatalf("garbage env must keep the default, got %v", cfg.Strategy.MinDivStrength)
	}
}

func TestPollSecondsFromYAML(t *testing.T) {
	cfg := defaults()
	raw := []byte("binance:\n  poll_seconds: 9\ntrade_tracker:\n  poll_seconds: 30\n")
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Binance.PollSeconds != 9 {
		t.Fatalf("binance poll_seconds=%d, want 9 from yaml", cfg.Binance.PollSeconds)
	}
	if got := cfg.Binance.PollInterval(); got != 9*time.Second {
		t.Fatalf("binance poll interval=%v, want 9s", got)
	}
	if got := cfg.Tracker.PollInterval(); got != 30*time.Second {
		t.Fatalf("tracker poll interval=%v, want 30s", got)
	}
}

func TestValidateRejectsZeroPollSeconds(t *testing.T) {
	cfg := defaults()
	cfg.TVBridge.Secret = "s3cret"
	cfg.Binance.PollSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: zero poll_seconds")
	}
}

func TestMapSymbol(t *testing.T) {
	cfg := defaults()
	cfg.SymbolMap = map[string]string{"BTCUSDT": "BTCUSD"}
	if got := cfg.MapSymbol("BTCUSDT"); got != "BTCUSD" {
		t.Fatalf("MapSymbol = %q", got)
	}
	if got := cfg.MapSymbol("XAUUSDT"); got != "XAUUSDT" {
		t.Fatalf("MapSymbol passthrough = %q", got)
	}
}
