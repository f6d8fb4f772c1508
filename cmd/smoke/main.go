package main

import (
	"context"
	"fmt"
	"os"
	"time"

	binsvc "parity_bot/internal/modules/binance_feed/service"
	"parity_bot/internal/modules/config"
	"parity_bot/pkg/logger"

	"github.com/spf13/viper"
)

// smoke — быстрый прогон фида без запуска сервиса: тянем klines и печатаем
// время закрытия последнего бара. Полезно проверить venue/символ до деплоя.
//
//	SMOKE_SYMBOL=XAUUSDT SMOKE_VENUE=usdm go run ./cmd/smoke
func main() {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.SetServiceName("parity_smoke")

	v := viper.New()
	v.SetEnvPrefix("SMOKE")
	v.AutomaticEnv()
	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("interval", "15m")
	v.SetDefault("limit", 10)
	v.SetDefault("venue", "spot")

	cfg := &config.Config{}
	cfg.Binance.Venue = v.GetString("venue")

	cli := binsvc.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	symbol := v.GetString("symbol")
	interval := v.GetString("interval")
	rows, err := cli.Klines(ctx, symbol, interval, v.GetInt("limit"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no klines returned")
		os.Exit(1)
	}

	last := rows[len(rows)-1]
	closeUTC := time.UnixMilli(last.CloseTime).UTC()
	fmt.Printf("%s %s last_close_time_utc=%s\n", symbol, interval, closeUTC.Format(time.RFC3339))
}
