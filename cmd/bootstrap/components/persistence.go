package components

import (
	"log/slog"

	"cinema-order-engine/internal/infra/uow"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

// Repositories and read stores are bound per transaction inside the unit of
// work, so the unit of work is the only persistence provider.
var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		fx.Annotate(
			NewUnitOfWork,
			fx.As(new(shared.UnitOfWork)),
		),
	),
)

func NewUnitOfWork(pool *pgxpool.Pool, logger *slog.Logger, cfg config.Config) *uow.PostgresUoW {
	return uow.NewPostgresUoW(pool, logger, cfg.DB.TxMaxRetries)
}
