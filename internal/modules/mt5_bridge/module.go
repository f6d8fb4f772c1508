package mt5_bridge

import (
	"parity_bot/internal/modules/mt5_bridge/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("mt5_bridge",
		fx.Provide(service.NewClient),
	)
}
