package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"parity_bot/internal/modules/config"

	"github.com/pkg/errors"
)

// Client — REST-клиент терминального шлюза (прослойка перед MT5-терминалом).
// Все запросы подписываются HMAC-SHA256: ts + METHOD + path + body.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	paper     bool
	http      *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.Gateway.BaseURL, "/"),
		apiKey:    cfg.Gateway.APIKey,
		apiSecret: cfg.Gateway.APISecret,
		paper:     cfg.Paper,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Paper() bool { return c.paper }

func (c *Client) sign(ts, method, path, body string) string {
	msg := ts + strings.ToUpper(method) + path + body
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "gateway %s %s", method, path)
	}

	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req.Header.Set("X-GW-KEY", c.apiKey)
	req.Header.Set("X-GW-SIGN", c.sign(ts, method, path, string(payload)))
	req.Header.Set("X-GW-TIMESTAMP", ts)
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "gateway %s %s", method, path)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		if len(data) > 300 {
			data = data[:300]
		}
		return nil, errors.Errorf("gateway http %d %s: %s", resp.StatusCode, path, string(data))
	}
	return data, nil
}
