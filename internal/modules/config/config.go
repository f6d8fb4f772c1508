package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"parity_bot/internal/timeframe"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	gatewaySecretENV  = "GATEWAY_API_SECRET"
	tvSecretENV       = "TV_SECRET"
	minDivStrengthENV = "STRATEGY_MIN_DIV_STRENGTH"
	cvdThresholdENV   = "STRATEGY_CVD_THRESHOLD"
)

const (
	ModeTVMaster      = "tv_master"
	ModeBinanceMaster = "binance_master"
)

type TVBridgeConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	Secret         string `yaml:"secret"`
	RequireTFMatch bool   `yaml:"require_tf_match"`
	ExpectedTF     string `yaml:"expected_tf"`
}

type BinanceConfig struct {
	Venue       string `yaml:"venue"`    // spot | usdm
	APIBase     string `yaml:"api_base"` // override, обычно пусто
	Limit       int    `yaml:"limit"`
	PollSeconds int    `yaml:"poll_seconds"`
	UseWS       bool   `yaml:"use_ws"`
	StaleBars   int    `yaml:"stale_bars"` // сколько баров без закрытия считаем фид протухшим
}

// PollInterval — период опроса klines.
func (c BinanceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// GatewayConfig — терминальный шлюз (исполнение ордеров).
type GatewayConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

type TelegramConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Token            string `yaml:"token"`
	ChatID           int64  `yaml:"chat_id"`
	ThrottleSeconds  int    `yaml:"throttle_seconds"`
	NotifyStartup    bool   `yaml:"notify_startup"`
	NotifyFailures   bool   `yaml:"notify_failures"`
	NotifyEntry      bool   `yaml:"notify_entry"`
	NotifyExit       bool   `yaml:"notify_exit"`
	NotifyRejects    bool   `yaml:"notify_rejects"`
	NotifyStaleFeeds bool   `yaml:"notify_stale_feed"`
}

// StrategyConfig — параметры паритетной стратегии. Дефолты 1-в-1 с исходным скриптом.
type StrategyConfig struct {
	DonLen     int     `yaml:"don_len"`
	PivotLen   int     `yaml:"pivot_len"`
	OscLen     int     `yaml:"osc_len"`
	ExtBandPct float64 `yaml:"ext_band_pct"`

	TradeAllDivergences bool `yaml:"trade_all_divergences"`

	LongOnly       bool    `yaml:"long_only"`
	EntryMode      string  `yaml:"entry_mode"` // raw | confirm
	MinDivStrength float64 `yaml:"min_div_strength"`
	CooldownBars   int     `yaml:"cooldown_bars"`

	UseCvdGate bool `yaml:"use_cvd_gate"`
	CvdLenMin  int  `yaml:"cvd_len_min"`

	UseDynamicCvdPct bool    `yaml:"use_dynamic_cvd_pct"`
	CvdLookbackBars  int     `yaml:"cvd_lookback_bars"`
	CvdPct           float64 `yaml:"cvd_pct"`
	CvdThreshold     float64 `yaml:"cvd_threshold"`

	UseBOSConfirm bool    `yaml:"use_bos_confirm"`
	BosAtrBuffer  float64 `yaml:"bos_atr_buffer"`
	MaxWaitBars   int     `yaml:"max_wait_bars"`

	ATRLen int `yaml:"atr_len"`
}

type RiskConfig struct {
	Lot       float64 `yaml:"lot"`
	SLAtrMult float64 `yaml:"sl_atr_mult"`
	TPAtrMult float64 `yaml:"tp_atr_mult"`
	Deviation int     `yaml:"deviation"`
	Magic     int     `yaml:"magic"`
	Comment   string  `yaml:"comment"`
}

type TrackerConfig struct {
	Enabled     bool `yaml:"enabled"`
	PollSeconds int  `yaml:"poll_seconds"`
	HistoryDays int  `yaml:"history_days"`
}

// PollInterval — период опроса позиций шлюза.
func (c TrackerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// Config ...
type Config struct {
	Mode      string `yaml:"mode"` // tv_master | binance_master
	Paper     bool   `yaml:"paper"`
	Timeframe string `yaml:"timeframe"` // "M15" / "15m"

	Symbols   []string          `yaml:"symbols"`
	SymbolMap map[string]string `yaml:"symbol_map"` // биржевой символ -> символ терминала

	DB      string `yaml:"db_dsn"` // пусто — дедуп живёт только в памяти процесса
	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	TVBridge TVBridgeConfig `yaml:"tv_bridge"`
	Binance  BinanceConfig  `yaml:"binance"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Telegram TelegramConfig `yaml:"telegram"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Tracker  TrackerConfig  `yaml:"trade_tracker"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := defaults()
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func defaults() *Config {
	cfg := &Config{
		Mode:      ModeTVMaster,
		Paper:     true,
		Timeframe: "M15",
		Strategy: StrategyConfig{
			DonLen:     120,
			PivotLen:   5,
			OscLen:     14,
			ExtBandPct: 0.15,

			TradeAllDivergences: true,

			LongOnly:       true,
			EntryMode:      "confirm",
			MinDivStrength: 15.0,
			CooldownBars:   0,

			UseCvdGate: true,
			CvdLenMin:  60,

			UseDynamicCvdPct: true,
			CvdLookbackBars:  2880,
			CvdPct:           75,
			CvdThreshold:     244.075,

			UseBOSConfirm: true,
			BosAtrBuffer:  0.10,
			MaxWaitBars:   30,

			ATRLen: 14,
		},
		Risk: RiskConfig{
			Lot:       0.01,
			SLAtrMult: 1.5,
			TPAtrMult: 3.0,
			Deviation: 20,
			Magic:     260110,
			Comment:   "PineParity LONG",
		},
		Binance: BinanceConfig{
			Venue:       "spot",
			Limit:       300,
			PollSeconds: intFromEnv("BINANCE_POLL_SECONDS", 5),
			UseWS:       boolFromEnv("BINANCE_USE_WS", false),
			StaleBars:   intFromEnv("BINANCE_STALE_BARS", 3),
		},
		Tracker: TrackerConfig{
			Enabled:     true,
			PollSeconds: intFromEnv("TRACKER_POLL_SECONDS", 5),
			HistoryDays: 3,
		},
	}
	cfg.TVBridge = TVBridgeConfig{
		Enabled:        true,
		Host:           "0.0.0.0",
		Port:           9001,
		Path:           "/tv",
		RequireTFMatch: true,
	}
	cfg.Telegram.ThrottleSeconds = 20
	cfg.Telegram.NotifyStartup = true
	cfg.Telegram.NotifyFailures = true
	cfg.Telegram.NotifyEntry = true
	cfg.Telegram.NotifyExit = true
	cfg.Telegram.NotifyRejects = true
	cfg.Service.AdminPort = intFromEnv("ADMIN_PORT", 9090)
	return cfg
}

func applyEnv(config *Config) {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if sec := os.Getenv(gatewaySecretENV); sec != "" {
		config.Gateway.APISecret = sec
	}
	if sec := os.Getenv(tvSecretENV); sec != "" {
		config.TVBridge.Secret = sec
	}
	// числовые крутилки стратегии поверх YAML, для A/B без передеплоя конфига
	config.Strategy.MinDivStrength = floatFromEnv(minDivStrengthENV, config.Strategy.MinDivStrength)
	config.Strategy.CvdThreshold = floatFromEnv(cvdThresholdENV, config.Strategy.CvdThreshold)
}

// Validate — то, без чего сервис не имеет смысла запускать.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeTVMaster, ModeBinanceMaster:
	default:
		return fmt.Errorf("unknown mode: %s (expected tv_master or binance_master)", c.Mode)
	}
	if _, err := timeframe.Normalize(c.Timeframe); err != nil {
		return err
	}
	if c.TVBridge.Enabled && c.TVBridge.Secret == "" {
		return fmt.Errorf("tv_bridge.secret is required when tv_bridge.enabled=true")
	}
	if c.Mode == ModeBinanceMaster && len(c.Symbols) == 0 {
		return fmt.Errorf("symbols are required in binance_master mode")
	}
	if c.Strategy.PivotLen <= 0 || c.Strategy.DonLen <= 0 || c.Strategy.OscLen <= 0 {
		return fmt.Errorf("strategy lookbacks must be positive")
	}
	if c.Binance.PollSeconds <= 0 || c.Tracker.PollSeconds <= 0 {
		return fmt.Errorf("poll_seconds must be positive")
	}
	return nil
}

// ExpectedTF — какой tf требуем от webhook-пейлоада; legacy-ключа нет,
// пустое значение = таймфрейм сервиса.
func (c *Config) ExpectedTF() string {
	if c.TVBridge.ExpectedTF != "" {
		return c.TVBridge.ExpectedTF
	}
	if tf, err := timeframe.BinanceInterval(c.Timeframe); err == nil {
		return tf
	}
	return c.Timeframe
}

// MapSymbol — биржевой символ -> символ терминала, иначе как есть.
func (c *Config) MapSymbol(symbol string) string {
	if mapped, ok := c.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}
