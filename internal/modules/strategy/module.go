package strategy

import (
	"parity_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
)

// Module поднимает паритетный движок стратегии.
func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewPineParityEngine,
			func(e *service.PineParityEngine) service.Engine { return e },
		),
	)
}
