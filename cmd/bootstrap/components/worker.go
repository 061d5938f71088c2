package components

import (
	"context"
	"log/slog"

	"cinema-order-engine/internal/pkg/clock"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/metrics"
	"cinema-order-engine/internal/usecase/shared"
	"cinema-order-engine/internal/worker"

	"go.uber.org/fx"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(
		NewOutboxRelay,
		NewIdempotencySweeper,
	),
	fx.Invoke(RegisterWorkers),
)

func NewOutboxRelay(
	uow shared.UnitOfWork,
	publisher worker.EventPublisher,
	clk clock.Clock,
	m *metrics.RelayMetrics,
	logger *slog.Logger,
	cfg config.Config,
) *worker.OutboxRelay {
	return worker.NewOutboxRelay(uow, publisher, clk, m, logger, cfg.Broker)
}

func NewIdempotencySweeper(uow shared.UnitOfWork, logger *slog.Logger, cfg config.Config) *worker.IdempotencySweeper {
	return worker.NewIdempotencySweeper(uow, logger, cfg.Order.IdempotencySweepInterval)
}

func RegisterWorkers(lc fx.Lifecycle, relay *worker.OutboxRelay, sweeper *worker.IdempotencySweeper) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			relay.Start()
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := relay.Stop(ctx); err != nil {
				return err
			}
			return sweeper.Stop(ctx)
		},
	})
}
