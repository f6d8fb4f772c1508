package runner

import (
	"context"

	"parity_bot/internal/models"
	binsvc "parity_bot/internal/modules/binance_feed/service"
	"parity_bot/internal/modules/config"
	"parity_bot/internal/modules/metrics"
	mt5svc "parity_bot/internal/modules/mt5_bridge/service"
	stratsvc "parity_bot/internal/modules/strategy/service"
	tgsvc "parity_bot/internal/modules/telegram/service"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Runner исполняет принятые диспетчером сигналы: один вход по сигналу,
// SL/TP от ATR, регистрация сделки в трекере.
type Runner struct {
	cfg     *config.Config
	gw      *mt5svc.Client
	binance *binsvc.Client
	n       *tgsvc.Notifier
	m       *metrics.Metrics
	tracker *Tracker
}

func NewRunner(
	cfg *config.Config,
	gw *mt5svc.Client,
	binance *binsvc.Client,
	n *tgsvc.Notifier,
	m *metrics.Metrics,
	tracker *Tracker,
) *Runner {
	return &Runner{cfg: cfg, gw: gw, binance: binance, n: n, m: m, tracker: tracker}
}

func (r *Runner) OnSignal(ctx context.Context, sig models.Signal) {
	span := opentracing.StartSpan("handle_signal")
	span.SetTag("symbol", sig.Symbol)
	span.SetTag("source", string(sig.Source))
	span.SetTag("bar_close_ms", sig.BarCloseMs)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	r.executeLong(ctx, sig)
}

func (r *Runner) executeLong(ctx context.Context, sig models.Signal) {
	mapped := r.cfg.MapSymbol(sig.Symbol)

	if sig.EntryPrice <= 0 {
		logger.Error("cannot execute: missing entry price for %s", mapped)
		r.m.OrdersTotal.WithLabelValues("fail").Inc()
		if r.cfg.Telegram.NotifyFailures {
			r.n.SendThrottledF(ctx, "fail:"+mapped,
				"EXEC FAIL\nMode: %s\n%s LONG\nmissing entry_price", r.cfg.Mode, mapped)
		}
		return
	}

	open, err := r.gw.HasOpenPosition(ctx, mapped, r.cfg.Risk.Magic)
	if err != nil {
		logger.Warn("open position check %s: %v", mapped, err)
	}
	if open {
		logger.Warn("SKIP already in position %s LONG", mapped)
		r.m.OrdersTotal.WithLabelValues("skip").Inc()
		if r.cfg.Telegram.NotifyFailures {
			r.n.SendThrottledF(ctx, "skip:"+mapped, "SKIP already in position\n%s LONG", mapped)
		}
		return
	}

	atr := sig.ATR
	if atr <= 0 {
		atr = r.atrHint(ctx, sig.Symbol)
	}
	var sl, tp float64
	if atr > 0 {
		sl = sig.EntryPrice - atr*r.cfg.Risk.SLAtrMult
		tp = sig.EntryPrice + atr*r.cfg.Risk.TPAtrMult
	}

	res, err := r.gw.PlaceMarketBuy(ctx, mt5svc.MarketBuyRequest{
		Symbol:    mapped,
		Lot:       r.cfg.Risk.Lot,
		Deviation: r.cfg.Risk.Deviation,
		Magic:     r.cfg.Risk.Magic,
		Comment:   r.cfg.Risk.Comment,
		SL:        sl,
		TP:        tp,
	})
	if err != nil || !res.OK {
		logger.Error("EXEC FAIL symbol=%s retcode=%d comment=%s err=%v", mapped, res.Retcode, res.Comment, err)
		r.m.OrdersTotal.WithLabelValues("fail").Inc()
		if r.cfg.Telegram.NotifyFailures {
			r.n.SendThrottledF(ctx, "fail:"+mapped,
				"EXEC FAIL\nMode: %s\n%s LONG\nretcode=%d\n%s", r.cfg.Mode, mapped, res.Retcode, res.Comment)
		}
		return
	}

	logger.Info("EXEC OK symbol=%s retcode=%d comment=%s order=%d", mapped, res.Retcode, res.Comment, res.Order)
	r.m.OrdersTotal.WithLabelValues("ok").Inc()

	var riskCcy float64
	if sl > 0 {
		riskCcy, err = r.gw.CalcRisk(ctx, mapped, r.cfg.Risk.Lot, sig.EntryPrice, sl)
		if err != nil {
			logger.Warn("risk calc failed: %v", err)
		}
	}

	tf := sig.Timeframe
	if tf == "" {
		tf = r.cfg.Timeframe
	}
	meta := models.TradeMeta{
		Mode:          r.cfg.Mode,
		Source:        sig.Source,
		Symbol:        mapped,
		TF:            tf,
		Side:          models.SideLong,
		Lot:           r.cfg.Risk.Lot,
		EntryPrice:    sig.EntryPrice,
		SL:            sl,
		TP:            tp,
		ConfirmTimeMs: sig.ConfirmTimeMs,
		Magic:         r.cfg.Risk.Magic,
		Comment:       r.cfg.Risk.Comment,
		RiskCcy:       riskCcy,
	}
	r.tracker.RegisterOpen(meta)

	if r.cfg.Telegram.NotifyEntry {
		r.n.SendThrottledF(ctx, "entry:"+mapped,
			"ENTRY\nMode: %s | Source: %s\n%s LONG tf=%s\nEntry: %.5f\nSL:    %.5f\nTP:    %.5f\nLot:   %v\nRisk:  %.2f",
			meta.Mode, meta.Source, mapped, meta.TF, meta.EntryPrice, sl, tp, meta.Lot, riskCcy)
	}
}

// atrHint — ATR(atr_len) по свежим klines биржи, когда сигнал пришёл без
// собственного (webhook-путь). Не получилось — входим без SL/TP.
func (r *Runner) atrHint(ctx context.Context, symbol string) float64 {
	interval, err := timeframe.BinanceInterval(r.cfg.Timeframe)
	if err != nil {
		return 0
	}
	rows, err := r.binance.Klines(ctx, symbol, interval, 250)
	if err != nil || len(rows) < 2 {
		logger.Warn("atr hint fetch %s: %v", symbol, err)
		return 0
	}

	// последняя строка — формирующийся бар, в расчёт не идёт
	rows = rows[:len(rows)-1]
	highs := make([]float64, len(rows))
	lows := make([]float64, len(rows))
	closes := make([]float64, len(rows))
	for i, k := range rows {
		highs[i], lows[i], closes[i] = k.High, k.Low, k.Close
	}
	return stratsvc.WilderATR(highs, lows, closes, r.cfg.Strategy.ATRLen)
}
