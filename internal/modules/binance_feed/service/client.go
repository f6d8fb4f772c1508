package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"parity_bot/internal/modules/config"
	"parity_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const exchangeInfoTTL = time.Hour

// Kline — строка ответа /klines после парсинга. Времена в ms, как у биржи
// (close_time заканчивается на ...999).
type Kline struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

// Client — REST-клиент Binance klines. Поддерживает spot и usdm:
// металлы типа XAGUSDT/XAUUSDT на Binance есть только во фьючерсах,
// на споте такой символ вернёт HTTP 400.
type Client struct {
	cfg  config.BinanceConfig
	http *http.Client

	mu      sync.Mutex
	valid   map[string]struct{}
	validTS time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:  cfg.Binance,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) venue() string {
	v := strings.ToLower(strings.TrimSpace(c.cfg.Venue))
	if v == "" {
		return "spot"
	}
	return v
}

func (c *Client) apiBase() string {
	if c.cfg.APIBase != "" {
		return strings.TrimRight(c.cfg.APIBase, "/")
	}
	if c.venue() == "usdm" {
		return "https://fapi.binance.com"
	}
	return "https://api.binance.com"
}

func (c *Client) klinePath() string {
	if c.venue() == "usdm" {
		return "/fapi/v1/klines"
	}
	return "/api/v3/klines"
}

func (c *Client) exchangeInfoPath() string {
	if c.venue() == "usdm" {
		return "/fapi/v1/exchangeInfo"
	}
	return "/api/v3/exchangeInfo"
}

func (c *Client) fetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", rawURL)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		if len(body) > 300 {
			body = body[:300]
		}
		return nil, errors.Errorf("http %d url=%s body=%s", resp.StatusCode, rawURL, string(body))
	}
	return body, nil
}

// Klines тянет свечи; limit срезается до биржевого максимума 1000.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if limit > 1000 {
		limit = 1000
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.fetchJSON(ctx, c.apiBase()+c.klinePath()+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var rows [][]any
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrapf(err, "klines decode %s %s", symbol, interval)
	}

	out := make([]Kline, 0, len(rows))
	for _, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, errors.Wrapf(err, "klines row %s %s", symbol, interval)
		}
		out = append(out, k)
	}
	return out, nil
}

// parseKline: [open_time, "open", "high", "low", "close", "volume", close_time, ...].
// Времена — числа, цены — строки.
func parseKline(row []any) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, errors.Errorf("short kline row: %d fields", len(row))
	}
	ot, ok := row[0].(float64)
	if !ok {
		return Kline{}, errors.Errorf("bad open_time %v", row[0])
	}
	ct, ok := row[6].(float64)
	if !ok {
		return Kline{}, errors.Errorf("bad close_time %v", row[6])
	}
	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return Kline{}, errors.Errorf("bad field %d: %v", i, row[i])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Kline{}, errors.Wrapf(err, "field %d", i)
		}
		prices[i-1] = f
	}
	return Kline{
		OpenTime:  int64(ot),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		CloseTime: int64(ct),
	}, nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
		Status string `json:"status"`
	} `json:"symbols"`
}

// validSymbols — множество торгуемых символов площадки, кэш на час.
func (c *Client) validSymbols(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid != nil && time.Since(c.validTS) < exchangeInfoTTL {
		return c.valid, nil
	}

	body, err := c.fetchJSON(ctx, c.apiBase()+c.exchangeInfoPath())
	if err != nil {
		return nil, err
	}
	var info exchangeInfo
	if err := sonic.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(err, "exchangeInfo decode")
	}

	syms := make(map[string]struct{}, len(info.Symbols))
	for _, s := range info.Symbols {
		switch strings.ToUpper(s.Status) {
		case "TRADING", "PRE_TRADING", "PENDING_TRADING":
			syms[s.Symbol] = struct{}{}
		}
	}
	c.valid = syms
	c.validTS = time.Now()
	return syms, nil
}

// ValidateSymbols отфильтровывает символы, которых нет на площадке.
// Если exchangeInfo недоступен — пропускаем валидацию, торгуем как есть.
func (c *Client) ValidateSymbols(ctx context.Context, symbols []string) []string {
	valid, err := c.validSymbols(ctx)
	if err != nil {
		logger.Warn("exchangeInfo fetch failed, skipping symbol validation: %v", err)
		return symbols
	}

	ok := make([]string, 0, len(symbols))
	var bad []string
	for _, s := range symbols {
		if _, found := valid[s]; found {
			ok = append(ok, s)
		} else {
			bad = append(bad, s)
		}
	}
	if len(bad) > 0 {
		hint := ""
		if c.venue() == "spot" {
			hint = " (металлы XAGUSDT/XAUUSDT — фьючерсы, поставьте binance.venue=usdm)"
		}
		logger.Error("invalid binance symbols for venue=%s: %v%s", c.venue(), bad, hint)
	}
	return ok
}
