package bootstrap

import (
	"context"
	"log/slog"

	"cinema-order-engine/internal/infra/broker"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/worker"

	"go.uber.org/fx"
)

var BrokerModule = fx.Module("broker",
	fx.Provide(
		NewEventPublisher,
	),
)

// NewEventPublisher returns nil when BROKER_URL is unset; the outbox relay then
// stays idle and events accumulate in order_events.
func NewEventPublisher(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) worker.EventPublisher {
	if !cfg.Broker.Enabled() {
		return nil
	}

	pub := broker.NewRabbitMQPublisher(cfg.Broker, logger)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return pub.Close()
		},
	})
	return pub
}
