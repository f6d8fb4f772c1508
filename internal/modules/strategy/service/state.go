package service

import (
	"math"

	"parity_bot/internal/models"
)

// minuteFlow — знаковый объём одной закрытой минуты.
type minuteFlow struct {
	closeMs int64
	sv      float64
}

// symState — всё rolling-состояние одного символа. Окна append-on-close,
// старое вытесняется; мутирует только update-путь, пайплайн читает.
type symState struct {
	// TF-окна
	opens   []float64
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
	winCap  int
	bars    int // сколько закрытых TF баров видели всего (абсолютный счёт)

	// осциллятор: стриминговая EMA от (close-open)*volume + кольцо последних значений
	osc     emaState
	oscRing []float64
	oscCap  int

	// ATR (Уайлдер)
	atr       rmaState
	prevClose float64

	// CVD-прокси: кольцо минутных знаковых объёмов
	m1    []minuteFlow
	m1Cap int

	thr *thresholdState

	ready bool

	// память последнего подтверждённого pivot low
	hasPrevPL   bool
	lastPLPrice float64
	lastPLOsc   float64
	lastPLBar   int

	// взведённый лонг-сетап
	longSetup  bool
	longTrig   float64
	longPL     float64
	longSetBar int

	lastEntryBar int
}

func newSymState(donLen, pivotLen, oscLen, atrLen, cvdLenMin int, thr *thresholdState) *symState {
	winCap := donLen
	if winCap < 50 {
		winCap = 50
	}
	winCap += pivotLen + 2
	oscCap := pivotLen + 1
	m1Cap := cvdLenMin + 16
	return &symState{
		opens:   make([]float64, 0, winCap),
		highs:   make([]float64, 0, winCap),
		lows:    make([]float64, 0, winCap),
		closes:  make([]float64, 0, winCap),
		volumes: make([]float64, 0, winCap),
		winCap:  winCap,

		osc:     newEMA(oscLen),
		oscRing: make([]float64, 0, oscCap),
		oscCap:  oscCap,

		atr:       newRMA(atrLen),
		prevClose: math.NaN(),

		m1:    make([]minuteFlow, 0, m1Cap),
		m1Cap: m1Cap,

		thr: thr,

		lastPLBar:    -1,
		longSetBar:   -1,
		lastEntryBar: -1,
	}
}

// updateTF добавляет закрытый TF бар во все окна.
func (s *symState) updateTF(c models.Candle) {
	s.atr.Update(trueRange(c.High, c.Low, s.prevClose))
	s.prevClose = c.Close

	s.osc.Update((c.Close - c.Open) * c.Volume)
	s.oscRing = append(s.oscRing, s.osc.Value())
	if len(s.oscRing) > s.oscCap {
		s.oscRing = s.oscRing[1:]
	}

	s.opens = append(s.opens, c.Open)
	s.highs = append(s.highs, c.High)
	s.lows = append(s.lows, c.Low)
	s.closes = append(s.closes, c.Close)
	s.volumes = append(s.volumes, c.Volume)
	if len(s.closes) > s.winCap {
		s.opens = s.opens[1:]
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
		s.closes = s.closes[1:]
		s.volumes = s.volumes[1:]
	}

	s.bars++
}

// updateM1 добавляет закрытую минуту в CVD-кольцо.
func (s *symState) updateM1(c models.Candle, closeMs int64) {
	sv := c.Volume
	if c.Close < c.Open {
		sv = -c.Volume
	}
	s.m1 = append(s.m1, minuteFlow{closeMs: closeMs, sv: sv})
	if len(s.m1) > s.m1Cap {
		s.m1 = s.m1[1:]
	}
}

// cvdProxy — сумма знаковых объёмов последних lenMin минут, закрывшихся
// не позже barCloseMs. Минуты после закрытия TF бара в расчёт не входят.
func (s *symState) cvdProxy(lenMin int, barCloseMs int64) float64 {
	if lenMin <= 0 {
		return 0
	}
	sum := 0.0
	taken := 0
	for i := len(s.m1) - 1; i >= 0 && taken < lenMin; i-- {
		if s.m1[i].closeMs > barCloseMs {
			continue
		}
		sum += s.m1[i].sv
		taken++
	}
	return sum
}

// oscAt — значение осциллятора back баров назад (0 = текущий бар).
func (s *symState) oscAt(back int) (float64, bool) {
	idx := len(s.oscRing) - 1 - back
	if idx < 0 {
		return 0, false
	}
	return s.oscRing[idx], true
}
