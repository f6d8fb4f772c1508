package service

import (
	"context"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	mdsvc "parity_bot/internal/modules/marketdata/service"
	"parity_bot/internal/modules/metrics"
	tgsvc "parity_bot/internal/modules/telegram/service"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"
)

// Poller — опрос klines рабочего TF + минуток. Сам он баров не закрывает и
// сигналов не считает: всё, что он делает — кормит хаб свечами в правильном
// порядке (минутки раньше рабочего бара, чтобы CVD-окно было свежим).
type Poller struct {
	cfg      *config.Config
	cli      *Client
	hub      *mdsvc.Hub
	m        *metrics.Metrics
	n        *tgsvc.Notifier
	interval string // биржевая нотация рабочего TF, напр. "15m"
	tfDur    time.Duration

	lastCloseMs map[string]int64
	lastAdvance map[string]time.Time
}

func NewPoller(cfg *config.Config, cli *Client, hub *mdsvc.Hub, m *metrics.Metrics, n *tgsvc.Notifier) (*Poller, error) {
	interval, err := timeframe.BinanceInterval(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	dur, err := timeframe.Duration(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	return &Poller{
		cfg:         cfg,
		cli:         cli,
		hub:         hub,
		m:           m,
		n:           n,
		interval:    interval,
		tfDur:       dur,
		lastCloseMs: make(map[string]int64),
		lastAdvance: make(map[string]time.Time),
	}, nil
}

// m1Limit — сколько минуток тянуть: окно CVD с запасом, но не больше 1000.
func (p *Poller) m1Limit() int {
	limit := p.cfg.Strategy.CvdLenMin + 10
	if limit < 200 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}

func (p *Poller) Run(ctx context.Context) {
	symbols := p.cli.ValidateSymbols(ctx, p.cfg.Symbols)
	logger.Info("binance master running venue=%s interval=%s symbols=%v",
		p.cfg.Binance.Venue, p.interval, symbols)
	if len(symbols) == 0 {
		logger.Error("no valid symbols to poll, feed idle")
		return
	}

	tick := time.NewTicker(p.cfg.Binance.PollInterval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, sym := range symbols {
				p.pollSymbol(ctx, sym)
			}
			p.checkStale(ctx, symbols)
		}
	}
}

func (p *Poller) pollSymbol(ctx context.Context, sym string) {
	rows, err := p.cli.Klines(ctx, sym, p.interval, p.cfg.Binance.Limit)
	if err != nil {
		logger.Error("fetch klines failed symbol=%s interval=%s: %v", sym, p.interval, err)
		p.m.FeedErrors.Inc()
		return
	}
	if len(rows) < 3 {
		return
	}

	// предпоследняя строка — последний закрытый бар; последняя ещё формируется
	lastClosed := rows[len(rows)-2]
	if lastClosed.CloseTime <= p.lastCloseMs[sym] {
		return
	}
	p.lastCloseMs[sym] = lastClosed.CloseTime
	p.lastAdvance[sym] = time.Now()

	logger.Info("BINANCE_BAR_CLOSE symbol=%s tf=%s close_ms=%d", sym, p.interval, lastClosed.CloseTime)

	m1, err := p.cli.Klines(ctx, sym, "1m", p.m1Limit())
	if err != nil {
		logger.Error("fetch m1 failed symbol=%s: %v", sym, err)
		p.m.FeedErrors.Inc()
		return
	}

	// минутки целиком, вместе с формирующейся: движок сам режет CVD-окно
	// по метке закрытия рабочего бара
	for _, k := range m1 {
		p.hub.Submit(p.raw(sym, "1m", k))
	}
	for _, k := range rows {
		p.hub.Submit(p.raw(sym, p.interval, k))
	}
}

func (p *Poller) raw(sym, interval string, k Kline) models.RawCandle {
	return models.RawCandle{
		Symbol:    sym,
		Timeframe: interval,
		OpenTime:  k.OpenTime,
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
	}
}

// checkStale поднимает тревогу, когда по символу давно не закрывались бары:
// stale_bars рабочих интервалов без продвижения — повод посмотреть на фид.
func (p *Poller) checkStale(ctx context.Context, symbols []string) {
	if p.cfg.Binance.StaleBars <= 0 {
		return
	}
	maxAge := time.Duration(p.cfg.Binance.StaleBars) * p.tfDur
	for _, sym := range symbols {
		last, ok := p.lastAdvance[sym]
		if !ok || time.Since(last) <= maxAge {
			continue
		}
		logger.Warn("stale feed symbol=%s last_close=%s", sym, last.UTC().Format(time.RFC3339))
		p.m.FeedErrors.Inc()
		if p.n != nil && p.cfg.Telegram.NotifyStaleFeeds {
			p.n.SendThrottledF(ctx, "stale_feed:"+sym,
				"⚠️ Фид протух: %s, баров нет с %s", sym, last.UTC().Format("15:04:05"))
		}
	}
}
