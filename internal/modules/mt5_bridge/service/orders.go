package service

import (
	"context"
	"net/http"

	"parity_bot/internal/models"
	"parity_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// MarketBuyRequest — тело ордера для шлюза. SL/TP опциональны: ноль в
// терминал не уходит.
type MarketBuyRequest struct {
	Symbol    string  `json:"symbol"`
	Lot       float64 `json:"lot"`
	Deviation int     `json:"deviation"`
	Magic     int     `json:"magic"`
	Comment   string  `json:"comment"`
	SL        float64 `json:"sl,omitempty"`
	TP        float64 `json:"tp,omitempty"`
}

// PlaceMarketBuy шлёт маркет-бай. В бумажном режиме до шлюза не доходим:
// сразу успех с пометкой PAPER, как делал бы сухой прогон в терминале.
func (c *Client) PlaceMarketBuy(ctx context.Context, req MarketBuyRequest) (models.OrderResult, error) {
	if c.paper {
		logger.Info("[PAPER] BUY %s lot=%.2f sl=%.5f tp=%.5f", req.Symbol, req.Lot, req.SL, req.TP)
		return models.OrderResult{OK: true, Retcode: 0, Comment: "PAPER"}, nil
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return models.OrderResult{}, errors.Wrap(err, "market buy marshal")
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/order/market_buy", payload)
	if err != nil {
		return models.OrderResult{}, err
	}

	var r struct {
		OK      bool   `json:"ok"`
		Retcode int    `json:"retcode"`
		Comment string `json:"comment"`
		Order   int64  `json:"order"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return models.OrderResult{}, errors.Wrapf(err, "market buy decode: %s", string(data))
	}
	return models.OrderResult{OK: r.OK, Retcode: r.Retcode, Comment: r.Comment, Order: r.Order}, nil
}

// CalcRisk — риск в валюте счёта для лонга lot от entry до sl.
// Шлюз считает через order_calc_profit терминала.
func (c *Client) CalcRisk(ctx context.Context, symbol string, lot, entry, sl float64) (float64, error) {
	if c.paper {
		return 0, nil
	}
	payload, err := sonic.Marshal(map[string]any{
		"symbol": symbol, "lot": lot, "price_open": entry, "price_close": sl,
	})
	if err != nil {
		return 0, errors.Wrap(err, "calc risk marshal")
	}
	data, err := c.do(ctx, http.MethodPost, "/api/v1/order/calc_profit", payload)
	if err != nil {
		return 0, err
	}
	var r struct {
		Profit float64 `json:"profit"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return 0, errors.Wrapf(err, "calc risk decode: %s", string(data))
	}
	if r.Profit < 0 {
		return -r.Profit, nil
	}
	return r.Profit, nil
}
