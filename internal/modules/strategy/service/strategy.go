package service

import "parity_bot/internal/models"

type Engine interface {
	// ok==true когда есть сигнал
	// becameReady==true когда символ перешёл в "готов" (после прогрева)
	OnBarClose(bar models.ClosedBar) (sig models.Signal, ok bool, becameReady bool)

	IsReady(symbol string) bool
	Dump(symbol string) string
	Name() string
}
