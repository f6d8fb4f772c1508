package models

import "time"

// OrderResult — ответ терминального шлюза на маркет-ордер.
type OrderResult struct {
	OK      bool
	Retcode int
	Comment string
	Order   int64
}

// TradeMeta — что знаем о сделке на входе; трекер по ней репортит выход.
type TradeMeta struct {
	Mode   string // tv_master | binance_master
	Source SignalSource
	Symbol string // символ терминала
	TF     string
	Side   Side
	Lot    float64

	EntryPrice    float64
	SL            float64 // 0 — не выставлен
	TP            float64
	ConfirmTimeMs int64
	Magic         int
	Comment       string

	RiskCcy float64 // риск в валюте счёта, посчитан при входе

	PositionTicket int64
	OpenedAt       time.Time
	MaxPrice       float64
	MinPrice       float64
}

// GatewayPosition — открытая позиция по данным шлюза.
type GatewayPosition struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Magic        int     `json:"magic"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
}

// GatewayDeal — закрывающая сделка из истории шлюза.
type GatewayDeal struct {
	Symbol     string  `json:"symbol"`
	Magic      int     `json:"magic"`
	PositionID int64   `json:"position_id"`
	Entry      string  `json:"entry"` // "in"/"out"
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
}
