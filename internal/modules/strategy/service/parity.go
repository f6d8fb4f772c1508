package service

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"
)

// PineParityEngine — порт исходной Pine-логики (только LONG, без fail-fast).
// Решение принимается исключительно на закрытых барах; партиал-бар сюда
// физически не попадает — выше стоит детектор закрытия.
type PineParityEngine struct {
	tf  string // канонический ключ, напр. "M15"
	cfg config.StrategyConfig

	mu sync.Mutex
	st map[string]*symState
}

func NewPineParityEngine(cfg *config.Config) (*PineParityEngine, error) {
	tf, err := timeframe.Normalize(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	return &PineParityEngine{
		tf:  tf,
		cfg: cfg.Strategy,
		st:  make(map[string]*symState),
	}, nil
}

func (e *PineParityEngine) get(sym string) *symState {
	if s, ok := e.st[sym]; ok {
		return s
	}
	s := newSymState(
		e.cfg.DonLen,
		e.cfg.PivotLen,
		e.cfg.OscLen,
		e.cfg.ATRLen,
		e.cfg.CvdLenMin,
		newThreshold(e.cfg.UseDynamicCvdPct, e.cfg.CvdThreshold, e.cfg.CvdPct, e.cfg.CvdLookbackBars),
	)
	e.st[sym] = s
	return s
}

// minNeed — минимум истории до первого решения.
func (e *PineParityEngine) minNeed() int {
	need := e.cfg.DonLen
	if v := 2*e.cfg.PivotLen + 2; v > need {
		need = v
	}
	if need < 50 {
		need = 50
	}
	return need
}

// OnBarClose принимает закрытые бары обоих таймфреймов (минутки кормят
// CVD-прокси, рабочий TF — всё остальное) и решает, есть ли сигнал.
func (e *PineParityEngine) OnBarClose(bar models.ClosedBar) (models.Signal, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := bar.Candle
	tf, err := timeframe.Normalize(c.Timeframe)
	if err != nil {
		return models.Signal{}, false, false
	}
	st := e.get(c.Symbol)

	// защита от мусора
	if c.Close <= 0 || c.High <= 0 || c.Low <= 0 {
		return models.Signal{}, false, false
	}

	if tf == "M1" {
		st.updateM1(c, bar.BarCloseMs())
		if e.tf != "M1" {
			return models.Signal{}, false, false
		}
	}
	if tf != e.tf {
		return models.Signal{}, false, false
	}

	st.updateTF(c)

	becameReady := false
	if !st.ready && st.bars >= e.minNeed() {
		st.ready = true
		becameReady = true
	}
	if !st.ready {
		return models.Signal{}, false, false
	}

	sig, ok := e.evaluate(st, c, bar.BarCloseMs())
	return sig, ok, becameReady
}

// evaluate — решение по одному закрытому TF бару. Зовётся ровно один раз
// на бар, повторной оценки не бывает.
func (e *PineParityEngine) evaluate(st *symState, c models.Candle, barCloseMs int64) (models.Signal, bool) {
	cfg := e.cfg
	entryMode := strings.ToLower(strings.TrimSpace(cfg.EntryMode))

	i := st.bars - 1           // абсолютный индекс текущего бара
	relI := len(st.closes) - 1 // он же внутри окна

	dh, dl, donOK := donchianAt(st.highs, st.lows, relI, cfg.DonLen)
	atrV := st.atr.Value()
	hhPivot, _ := rollingMaxAt(st.highs, relI, cfg.PivotLen)

	cvd := st.cvdProxy(cfg.CvdLenMin, barCloseMs)
	st.thr.Push(cvd)
	cvdThr := st.thr.Value()
	cvdGateLong := !cfg.UseCvdGate || cvd >= cvdThr

	canEnter := func() bool {
		if cfg.CooldownBars <= 0 {
			return true
		}
		if st.lastEntryBar < 0 {
			return true
		}
		return i-st.lastEntryBar >= cfg.CooldownBars
	}

	longSignal := false

	if pivRel, ok := pivotLowConfirmed(st.lows, relI, cfg.PivotLen, cfg.PivotLen); ok {
		plPrice := st.lows[pivRel]
		plOsc, _ := st.oscAt(relI - pivRel)

		// положение pivot-бара внутри канала; пока канал на том баре не
		// определён — у нижней границы не считаемся
		nearLower := false
		if dhP, dlP, okP := donchianAt(st.highs, st.lows, pivRel, cfg.DonLen); okP {
			nearLower = channelLoc(st.closes[pivRel], dhP, dlP) <= cfg.ExtBandPct
		}

		hasPrev := st.hasPrevPL
		bullDiv := hasPrev && plPrice <= st.lastPLPrice && plOsc > st.lastPLOsc
		safePrevOsc := 1e-9
		if hasPrev {
			safePrevOsc = math.Max(math.Abs(st.lastPLOsc), 1e-9)
		}
		oscChange := 0.0
		if hasPrev {
			oscChange = (plOsc - st.lastPLOsc) / safePrevOsc * 100.0
		}
		strengthOk := cfg.MinDivStrength <= 0 || oscChange >= cfg.MinDivStrength

		if cfg.LongOnly && nearLower && bullDiv && strengthOk && canEnter() {
			st.longSetup = true
			st.longTrig = hhPivot
			st.longPL = plPrice
			st.longSetBar = i

			if entryMode == "raw" && cfg.TradeAllDivergences && cvdGateLong {
				longSignal = true
				st.longSetup = false
			}
		}

		// память пивота обновляется всегда, даже без сетапа
		st.lastPLPrice = plPrice
		st.lastPLOsc = plOsc
		st.lastPLBar = i - cfg.PivotLen
		st.hasPrevPL = true
	}

	if entryMode == "confirm" && st.longSetup && st.longSetBar >= 0 {
		if i-st.longSetBar > cfg.MaxWaitBars {
			st.longSetup = false
		} else {
			buf := atrV * cfg.BosAtrBuffer
			bosOk := c.Close > st.longTrig+buf
			trigOk := bosOk
			if !cfg.UseBOSConfirm {
				trigOk = c.Close > c.Open
			}
			if trigOk && cvdGateLong && canEnter() && cfg.TradeAllDivergences {
				longSignal = true
				st.longSetup = false
			}
		}
	}

	logger.Info(
		"BAR_CLOSE symbol=%s tf=%s close_ms=%d close=%.5f donHi=%.5f donLo=%.5f donOk=%v atr=%.5f cvd=%.2f thr=%.2f setup=%v",
		c.Symbol, e.tf, barCloseMs, c.Close, dh, dl, donOK, atrV, cvd, cvdThr, st.longSetup,
	)

	if !longSignal {
		return models.Signal{}, false
	}

	st.lastEntryBar = i
	sig := models.Signal{
		Symbol:    c.Symbol,
		Timeframe: e.tf,
		Side:      models.SideLong,
		Source:    models.SourceBinance,

		EntryPrice:    c.Close,
		PivotPrice:    st.longPL,
		Trigger:       st.longTrig,
		ATR:           atrV,
		CVD:           cvd,
		CVDThr:        cvdThr,
		CVDOk:         cvdGateLong,
		ConfirmTimeMs: barCloseMs - 1,
		BarCloseMs:    barCloseMs,

		Reason: fmt.Sprintf(
			"pivot=%.5f trig=%.5f atr=%.5f cvd=%.2f thr=%.2f mode=%s",
			st.longPL, st.longTrig, atrV, cvd, cvdThr, entryMode,
		),
		CreatedAt: time.Now().UTC(),
	}
	return sig, true
}

func (e *PineParityEngine) IsReady(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.st[symbol]
	return ok && st.ready
}

func (e *PineParityEngine) Name() string { return "pine_parity_long" }

func (e *PineParityEngine) Dump(symbol string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.st[symbol]
	if !ok {
		return "parity: no state"
	}

	return fmt.Sprintf(
		"parity[%s] bars=%d/%d ready=%v m1=%d thr=%.2f setup=%v trig=%.5f lastPL=%.5f lastEntry=%d",
		e.tf, st.bars, e.minNeed(), st.ready, len(st.m1), st.thr.Value(),
		st.longSetup, st.longTrig, st.lastPLPrice, st.lastEntryBar,
	)
}
