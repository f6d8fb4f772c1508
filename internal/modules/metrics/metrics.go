package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики движка. Одна инстанция на процесс, живёт в fx.
type Metrics struct {
	CandlesTotal    prometheus.Counter
	MalformedTotal  prometheus.Counter
	BarsClosed      *prometheus.CounterVec // labels: timeframe
	BarsEvaluated   prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: source
	DuplicatesTotal prometheus.Counter
	RejectsTotal    *prometheus.CounterVec // labels: reason
	FeedErrors      prometheus.Counter
	OrdersTotal     *prometheus.CounterVec // labels: result
	EvalPanics      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_candles_total",
			Help: "Normalized candles accepted from all feeds.",
		}),
		MalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_candles_malformed_total",
			Help: "Raw candles dropped by the normalizer.",
		}),
		BarsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_bars_closed_total",
			Help: "Bar close events emitted by the detector.",
		}, []string{"timeframe"}),
		BarsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_bars_evaluated_total",
			Help: "Working-timeframe bars evaluated by the engine.",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_signals_total",
			Help: "Long entry signals offered to the dispatch gate.",
		}, []string{"source"}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_signals_duplicate_total",
			Help: "Signals rejected by the dispatch gate as duplicates.",
		}),
		RejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_webhook_rejects_total",
			Help: "Webhook payloads rejected by the bridge.",
		}, []string{"reason"}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_feed_errors_total",
			Help: "Feed poll/stream errors.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_orders_total",
			Help: "Order submissions by result.",
		}, []string{"result"}),
		EvalPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parity_eval_panics_total",
			Help: "Recovered panics during per-symbol evaluation.",
		}),
	}
	reg.MustRegister(
		m.CandlesTotal, m.MalformedTotal, m.BarsClosed, m.BarsEvaluated,
		m.SignalsTotal, m.DuplicatesTotal, m.RejectsTotal, m.FeedErrors,
		m.OrdersTotal, m.EvalPanics,
	)
	return m
}
