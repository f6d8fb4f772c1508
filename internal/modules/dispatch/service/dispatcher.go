package service

import (
	"context"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/metrics"
	"parity_bot/pkg/logger"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Dispatcher — единственная дорога сигнала к исполнению: через шлюз дедупа
// в очередь раннера. Сюда сходятся оба режима (webhook и собственный расчёт).
type Dispatcher struct {
	gate *Gate
	out  chan<- models.Signal
	m    *metrics.Metrics
	n    ServiceNotifier
}

func NewDispatcher(gate *Gate, out chan<- models.Signal, m *metrics.Metrics, n ServiceNotifier) *Dispatcher {
	return &Dispatcher{gate: gate, out: out, m: m, n: n}
}

func (d *Dispatcher) Submit(ctx context.Context, sig models.Signal) Result {
	res := d.gate.Offer(ctx, sig)
	switch res {
	case Duplicate:
		// не ошибка: второй фид/ретрай принёс тот же бар
		logger.Info("duplicate signal dropped %s %s close_ms=%d source=%s",
			sig.Symbol, sig.Timeframe, sig.BarCloseMs, sig.Source)
		d.m.DuplicatesTotal.Inc()
		return res
	case Accepted:
		d.m.SignalsTotal.WithLabelValues(string(sig.Source)).Inc()
	}

	select {
	case d.out <- sig:
	default:
		logger.Error("signal queue full, drop %s %s close_ms=%d", sig.Symbol, sig.Timeframe, sig.BarCloseMs)
		if d.n != nil {
			d.n.SendService(ctx, "⚠️ очередь сигналов забита, дропнул %s %s", sig.Symbol, sig.Timeframe)
		}
	}
	return res
}
