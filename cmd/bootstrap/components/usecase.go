package components

import (
	"log/slog"

	"cinema-order-engine/internal/pkg/clock"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/metrics"
	"cinema-order-engine/internal/usecase"
	"cinema-order-engine/internal/usecase/commands"
	"cinema-order-engine/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseValidatorsModule,
	usecaseCommandsModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewOrderCommands,
	),
)

var usecaseValidatorsModule = fx.Module("usecase/validators",
	fx.Provide(
		usecase.NewTokenValidator,
	),
)

func NewOrderCommands(
	uow shared.UnitOfWork,
	clk clock.Clock,
	m *metrics.OrderMetrics,
	logger *slog.Logger,
	cfg config.Config,
) commands.OrderCommands {
	return commands.NewOrderUseCase(uow, clk, m, logger, commands.OrderUseCaseConfig{
		IdempotencyTTL: cfg.Order.IdempotencyTTL,
	})
}
