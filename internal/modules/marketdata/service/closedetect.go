package service

import (
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/timeframe"
)

// Detector — закрытие бара одного (symbol, timeframe). Бар объявляется
// закрытым, когда приходит свеча со строго большим open_time; прежняя свеча
// с этого момента неизменяемая история и эмитится ровно один раз.
// Детектор не потокобезопасен: им владеет один воркер символа.
type Detector struct {
	tfDur   time.Duration
	cur     models.Candle
	hasCur  bool
	flushed bool // cur уже эмичен через FlushBefore, повторно не закрываем
}

func NewDetector(tf string) (*Detector, error) {
	d, err := timeframe.Duration(tf)
	if err != nil {
		return nil, err
	}
	return &Detector{tfDur: d}, nil
}

// Observe принимает очередную свечу. Дубликаты и свечи из прошлого
// молча поглощаются; обновление ещё открытого бара закрытие не триггерит.
func (d *Detector) Observe(c models.Candle) (models.ClosedBar, bool) {
	if !d.hasCur {
		// первая свеча символа ничего не закрывает, только сеет состояние
		d.cur = c
		d.hasCur = true
		return models.ClosedBar{}, false
	}

	switch {
	case c.OpenTime.After(d.cur.OpenTime):
		closed := d.cur
		wasFlushed := d.flushed
		d.cur = c
		d.flushed = false
		if wasFlushed {
			// бар уже эмичен досрочно, этот фрейм только двигает окно
			return models.ClosedBar{}, false
		}
		return models.ClosedBar{
			Candle:    closed,
			CloseTime: closed.OpenTime.Add(d.tfDur),
		}, true

	case c.OpenTime.Equal(d.cur.OpenTime):
		if d.flushed {
			// эмиченный бар — неизменяемая история, снапшоты в дроп
			return models.ClosedBar{}, false
		}
		// свежий снапшот ещё открытого бара
		d.cur = c
		return models.ClosedBar{}, false

	default:
		// stale: open_time <= уже закрытого — дроп без следа
		return models.ClosedBar{}, false
	}
}

// FlushBefore досрочно закрывает текущий бар, если он целиком уложился до
// deadline: интервал на бирже уже истёк, просто закрывающий фрейм ещё не
// дошёл. Последующий Observe по этому бару закрытие не продублирует.
func (d *Detector) FlushBefore(deadline time.Time) (models.ClosedBar, bool) {
	if !d.hasCur || d.flushed {
		return models.ClosedBar{}, false
	}
	closeTime := d.cur.OpenTime.Add(d.tfDur)
	if closeTime.After(deadline) {
		return models.ClosedBar{}, false
	}
	d.flushed = true
	return models.ClosedBar{Candle: d.cur, CloseTime: closeTime}, true
}

// Pending — текущий (ещё не закрытый) бар, если есть.
func (d *Detector) Pending() (models.Candle, bool) {
	return d.cur, d.hasCur
}
