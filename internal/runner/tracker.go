package runner

import (
	"context"
	"math"
	"sync"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	mt5svc "parity_bot/internal/modules/mt5_bridge/service"
	tgsvc "parity_bot/internal/modules/telegram/service"
	"parity_bot/pkg/logger"
)

// Tracker ведёт открытые нами сделки (ключ — символ терминала) и репортит
// выход: позиция пропала из шлюза — собираем закрывающие сделки из истории,
// считаем PnL, R и причину (TP/SL/CLOSED).
type Tracker struct {
	cfg *config.Config
	gw  *mt5svc.Client
	n   *tgsvc.Notifier

	mu   sync.Mutex
	open map[string]*models.TradeMeta
}

func NewTracker(cfg *config.Config, gw *mt5svc.Client, n *tgsvc.Notifier) *Tracker {
	return &Tracker{
		cfg:  cfg,
		gw:   gw,
		n:    n,
		open: make(map[string]*models.TradeMeta),
	}
}

func (t *Tracker) RegisterOpen(meta models.TradeMeta) {
	if !t.cfg.Tracker.Enabled {
		return
	}
	meta.OpenedAt = time.Now()
	meta.MaxPrice = meta.EntryPrice
	meta.MinPrice = meta.EntryPrice

	t.mu.Lock()
	t.open[meta.Symbol] = &meta
	t.mu.Unlock()
}

// OpenCount — для диагностики.
func (t *Tracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

func (t *Tracker) Run(ctx context.Context) {
	logger.Info("trade tracker started poll=%ds", t.cfg.Tracker.PollSeconds)
	tick := time.NewTicker(t.cfg.Tracker.PollInterval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := t.poll(ctx); err != nil {
				logger.Error("tracker poll: %v", err)
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	t.mu.Lock()
	symbols := make([]string, 0, len(t.open))
	for s := range t.open {
		symbols = append(symbols, s)
	}
	t.mu.Unlock()
	if len(symbols) == 0 {
		return nil
	}

	positions, err := t.gw.Positions(ctx, "")
	if err != nil {
		return err
	}
	bySymbol := make(map[string]models.GatewayPosition, len(positions))
	for _, p := range positions {
		if p.Magic != t.cfg.Risk.Magic {
			continue
		}
		bySymbol[p.Symbol] = p
	}

	for _, sym := range symbols {
		t.mu.Lock()
		meta, ok := t.open[sym]
		t.mu.Unlock()
		if !ok {
			continue
		}

		if p, alive := bySymbol[sym]; alive {
			t.mu.Lock()
			if p.PriceCurrent > meta.MaxPrice {
				meta.MaxPrice = p.PriceCurrent
			}
			if p.PriceCurrent > 0 && (meta.MinPrice == 0 || p.PriceCurrent < meta.MinPrice) {
				meta.MinPrice = p.PriceCurrent
			}
			if meta.PositionTicket == 0 {
				meta.PositionTicket = p.Ticket
			}
			t.mu.Unlock()
			continue
		}

		profit, exitPx, reason, found := t.exitFromHistory(ctx, meta)
		if !found {
			continue
		}

		rMult := 0.0
		if meta.RiskCcy != 0 {
			rMult = profit / math.Abs(meta.RiskCcy)
		}
		dur := time.Since(meta.OpenedAt)

		logger.Info("EXIT symbol=%s reason=%s pnl=%.2f r=%.2f dur=%s", sym, reason, profit, rMult, dur)
		if t.cfg.Telegram.NotifyExit {
			t.n.SendThrottledF(ctx, "exit:"+sym,
				"EXIT (%s)\nMode: %s | Source: %s\n%s %s tf=%s\nEntry: %.5f\nExit:  %.5f\nPnL:   %.2f\nR:     %.2fR\nDur:   %dm",
				reason, meta.Mode, meta.Source, sym, meta.Side, meta.TF,
				meta.EntryPrice, exitPx, profit, rMult, int(dur.Minutes()))
		}

		t.mu.Lock()
		delete(t.open, sym)
		t.mu.Unlock()
	}
	return nil
}

// exitFromHistory агрегирует закрывающие сделки позиции: суммарный PnL с
// комиссией и свопом, средневзвешенная цена выхода, причина по близости
// к SL/TP (допуск 0.05%).
func (t *Tracker) exitFromHistory(ctx context.Context, meta *models.TradeMeta) (profit, exitPx float64, reason string, found bool) {
	fromMs := time.Now().AddDate(0, 0, -t.cfg.Tracker.HistoryDays).UnixMilli()
	deals, err := t.gw.DealsHistory(ctx, fromMs, t.cfg.Risk.Magic)
	if err != nil {
		logger.Warn("deals history %s: %v", meta.Symbol, err)
		return 0, 0, "", false
	}

	var pxNum, pxDen float64
	for _, d := range deals {
		if d.Symbol != meta.Symbol || d.Entry != "out" {
			continue
		}
		if meta.PositionTicket != 0 && d.PositionID != meta.PositionTicket {
			continue
		}
		found = true
		profit += d.Profit + d.Commission + d.Swap
		if d.Volume > 0 && d.Price > 0 {
			pxNum += d.Price * d.Volume
			pxDen += d.Volume
		}
	}
	if !found {
		return 0, 0, "", false
	}

	if pxDen > 0 {
		exitPx = pxNum / pxDen
	}
	reason = "CLOSED"
	if exitPx > 0 && meta.TP > 0 && math.Abs(exitPx-meta.TP) <= math.Abs(meta.TP)*0.0005 {
		reason = "TP"
	}
	if exitPx > 0 && meta.SL > 0 && math.Abs(exitPx-meta.SL) <= math.Abs(meta.SL)*0.0005 {
		reason = "SL"
	}
	return profit, exitPx, reason, true
}
