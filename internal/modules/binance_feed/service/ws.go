package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"parity_bot/internal/models"
	"parity_bot/internal/modules/config"
	mdsvc "parity_bot/internal/modules/marketdata/service"
	"parity_bot/internal/modules/metrics"
	"parity_bot/internal/timeframe"
	"parity_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// WSStream — живой kline-поток. Работает поверх поллера, а не вместо него:
// поллер остаётся источником истории и страховкой, стрим просто сокращает
// задержку между реальным закрытием бара и его детекцией.
type WSStream struct {
	cfg      *config.Config
	hub      *mdsvc.Hub
	m        *metrics.Metrics
	interval string
}

func NewWSStream(cfg *config.Config, hub *mdsvc.Hub, m *metrics.Metrics) (*WSStream, error) {
	interval, err := timeframe.BinanceInterval(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	return &WSStream{cfg: cfg, hub: hub, m: m, interval: interval}, nil
}

func (w *WSStream) wsBase() string {
	if strings.ToLower(w.cfg.Binance.Venue) == "usdm" {
		return "wss://fstream.binance.com"
	}
	return "wss://stream.binance.com:9443"
}

func (w *WSStream) streamURL() string {
	streams := make([]string, 0, len(w.cfg.Symbols)*2)
	for _, sym := range w.cfg.Symbols {
		low := strings.ToLower(sym)
		streams = append(streams,
			low+"@kline_"+w.interval,
			low+"@kline_1m",
		)
	}
	return w.wsBase() + "/stream?streams=" + strings.Join(streams, "/")
}

// combinedFrame — комбинированный стрим: {"stream": "...", "data": {...}}.
type combinedFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime int64  `json:"t"`
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Final    bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (w *WSStream) Run(ctx context.Context) {
	url := w.streamURL()
	for {
		if ctx.Err() != nil {
			return
		}
		logger.Info("ws connect %s", url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Error("ws dial: %v", err)
			w.m.FeedErrors.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		w.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (w *WSStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("ws read: %v", err)
				w.m.FeedErrors.Inc()
			}
			return
		}

		var frame combinedFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		k := frame.Data.Kline
		if frame.Data.Symbol == "" || k.Interval == "" {
			continue
		}

		open, err1 := strconv.ParseFloat(k.Open, 64)
		high, err2 := strconv.ParseFloat(k.High, 64)
		low, err3 := strconv.ParseFloat(k.Low, 64)
		cls, err4 := strconv.ParseFloat(k.Close, 64)
		vol, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}

		w.hub.Submit(models.RawCandle{
			Symbol:    frame.Data.Symbol,
			Timeframe: k.Interval,
			OpenTime:  k.OpenTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    vol,
		})
	}
}
