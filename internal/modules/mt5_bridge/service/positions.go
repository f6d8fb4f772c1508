package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"parity_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Positions — открытые позиции по символу (пустой символ — все).
func (c *Client) Positions(ctx context.Context, symbol string) ([]models.GatewayPosition, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	path := "/api/v1/positions"
	if enc := params.Encode(); enc != "" {
		path += "?" + enc
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var r struct {
		Positions []models.GatewayPosition `json:"positions"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "positions decode: %s", string(data))
	}
	return r.Positions, nil
}

// HasOpenPosition — есть ли по символу позиция с нашим magic.
// Шлюз недоступен — считаем, что позиции нет, и пусть решает терминал.
func (c *Client) HasOpenPosition(ctx context.Context, symbol string, magic int) (bool, error) {
	pos, err := c.Positions(ctx, symbol)
	if err != nil {
		return false, err
	}
	for _, p := range pos {
		if p.Symbol == symbol && p.Magic == magic {
			return true, nil
		}
	}
	return false, nil
}

// DealsHistory — сделки из истории шлюза с метки fromMs, фильтр по magic.
func (c *Client) DealsHistory(ctx context.Context, fromMs int64, magic int) ([]models.GatewayDeal, error) {
	params := url.Values{}
	params.Set("from_ms", fmt.Sprintf("%d", fromMs))
	params.Set("magic", fmt.Sprintf("%d", magic))

	data, err := c.do(ctx, http.MethodGet, "/api/v1/deals?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var r struct {
		Deals []models.GatewayDeal `json:"deals"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "deals decode: %s", string(data))
	}
	return r.Deals, nil
}

// Tick — последний тик символа; ask нужен для цены входа маркет-бая.
type Tick struct {
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TimeMs int64   `json:"time_ms"`
}

func (c *Client) LastTick(ctx context.Context, symbol string) (Tick, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.do(ctx, http.MethodGet, "/api/v1/tick?"+params.Encode(), nil)
	if err != nil {
		return Tick{}, err
	}
	var t Tick
	if err := sonic.Unmarshal(data, &t); err != nil {
		return Tick{}, errors.Wrapf(err, "tick decode: %s", string(data))
	}
	return t, nil
}
