package service

import (
	"context"
	"sync"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	dispatchsvc "parity_bot/internal/modules/dispatch/service"
	"parity_bot/internal/modules/metrics"
	stratsvc "parity_bot/internal/modules/strategy/service"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"

	"go.uber.org/atomic"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Hub — единая точка входа свечей из всех фидов. На символ — один воркер,
// так что детекция закрытия и оценка движка строго последовательны внутри
// символа (single writer). Между символами порядок не важен.
type Hub struct {
	cfg    *config.Config
	workTF string // канонический рабочий TF, напр. "M15"
	engine stratsvc.Engine
	disp   *dispatchsvc.Dispatcher
	m      *metrics.Metrics
	n      ServiceNotifier

	ctx context.Context

	mu      sync.Mutex
	workers map[string]chan models.Candle

	readyCnt      int
	warmupMsgSent atomic.Bool
}

func NewHub(
	cfg *config.Config,
	engine stratsvc.Engine,
	disp *dispatchsvc.Dispatcher,
	m *metrics.Metrics,
	n ServiceNotifier,
) (*Hub, error) {
	tf, err := timeframe.Normalize(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	return &Hub{
		cfg:     cfg,
		workTF:  tf,
		engine:  engine,
		disp:    disp,
		m:       m,
		n:       n,
		workers: make(map[string]chan models.Candle),
	}, nil
}

// Start привязывает хаб к контексту приложения; зовётся до старта фидов.
func (h *Hub) Start(ctx context.Context) {
	h.ctx = ctx
}

// Submit — вход для сырых свечей. Мусор дропается здесь, дальше он не нужен.
func (h *Hub) Submit(raw models.RawCandle) {
	c, err := Normalize(raw)
	if err != nil {
		logger.Warn("malformed candle dropped: %v", err)
		h.m.MalformedTotal.Inc()
		return
	}
	h.m.CandlesTotal.Inc()

	h.mu.Lock()
	ch, ok := h.workers[c.Symbol]
	if !ok {
		ch = make(chan models.Candle, 256)
		h.workers[c.Symbol] = ch
		go h.run(c.Symbol, ch)
	}
	h.mu.Unlock()

	select {
	case ch <- c:
	case <-h.ctx.Done():
	}
}

// run — воркер одного символа: свой детектор на каждый таймфрейм.
func (h *Hub) run(symbol string, ch <-chan models.Candle) {
	dets := make(map[string]*Detector)
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-ch:
			det, ok := dets[c.Timeframe]
			if !ok {
				var err error
				det, err = NewDetector(c.Timeframe)
				if err != nil {
					logger.Warn("detector %s %s: %v", symbol, c.Timeframe, err)
					continue
				}
				dets[c.Timeframe] = det
			}
			closed, ok := det.Observe(c)
			if !ok {
				continue
			}
			h.m.BarsClosed.WithLabelValues(c.Timeframe).Inc()
			h.flushMinute(dets, closed)
			h.handleClosed(closed)
		}
	}
}

// flushMinute дожимает минутку перед оценкой рабочего бара: его последняя
// минута целиком в прошлом, но в стриме её закрывающий фрейм может прийти
// позже фрейма нового рабочего бара. Без дожима CVD-окно было бы неполным.
func (h *Hub) flushMinute(dets map[string]*Detector, closed models.ClosedBar) {
	if closed.Candle.Timeframe != h.workTF || h.workTF == "M1" {
		return
	}
	m1det, ok := dets["M1"]
	if !ok {
		return
	}
	mClosed, ok := m1det.FlushBefore(closed.CloseTime)
	if !ok {
		return
	}
	h.m.BarsClosed.WithLabelValues("M1").Inc()
	h.handleClosed(mClosed)
}

// handleClosed прогоняет закрытый бар через движок. Паника при оценке одного
// символа гасится тут и не трогает остальные символы.
func (h *Hub) handleClosed(bar models.ClosedBar) {
	defer func() {
		if p := recover(); p != nil {
			h.m.EvalPanics.Inc()
			logger.Error("evaluate %s %s panicked: %v", bar.Candle.Symbol, bar.Candle.Timeframe, p)
		}
	}()

	sig, ok, becameReady := h.engine.OnBarClose(bar)
	if bar.Candle.Timeframe == h.workTF {
		h.m.BarsEvaluated.Inc()
	}

	if becameReady {
		h.onBecameReady(bar.Candle.Symbol)
	}
	if !ok {
		return
	}
	h.disp.Submit(h.ctx, sig)
}

func (h *Hub) onBecameReady(sym string) {
	h.mu.Lock()
	h.readyCnt++
	cnt := h.readyCnt
	h.mu.Unlock()

	logger.Info("warmup done symbol=%s ready=%d", sym, cnt)

	if h.n == nil {
		return
	}
	if h.warmupMsgSent.CompareAndSwap(false, true) {
		h.n.SendService(h.ctx,
			"🔥 Warmup: первый символ прогрет | engine=%s | tf=%s",
			h.engine.Name(), h.cfg.Timeframe,
		)
	}
	if cnt == len(h.cfg.Symbols) && len(h.cfg.Symbols) > 0 {
		h.n.SendService(h.ctx,
			"✅ Warmup finished: %d/%d ready. Теперь ждём сигналы.",
			cnt, len(h.cfg.Symbols),
		)
	}
}
