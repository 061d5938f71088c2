package worker

import (
	"context"
	"log/slog"
	"time"

	"cinema-order-engine/internal/pkg/errs"
	"cinema-order-engine/internal/usecase/shared"
)

// IdempotencySweeper deletes expired idempotency keys. Expired keys are already
// ignored on lookup; this only bounds table growth.
type IdempotencySweeper struct {
	uow    shared.UnitOfWork
	logger *slog.Logger
	loop   *periodic
}

func NewIdempotencySweeper(uow shared.UnitOfWork, logger *slog.Logger, interval time.Duration) *IdempotencySweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	s := &IdempotencySweeper{uow: uow, logger: logger}
	s.loop = &periodic{name: "idempotency sweeper", interval: interval, logger: logger, tick: s.tick}
	return s
}

func (s *IdempotencySweeper) SweepOnce(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		n, err := tx.Idempotency().DeleteExpired(ctx)
		deleted = n
		return err
	})
	if err != nil {
		return 0, errs.Wrap(err, "sweep idempotency keys")
	}
	return deleted, nil
}

func (s *IdempotencySweeper) tick(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("idempotency sweep failed", "error", err.Error())
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired idempotency keys deleted", "count", n)
	}
}

func (s *IdempotencySweeper) Start() {
	s.loop.start()
}

func (s *IdempotencySweeper) Stop(ctx context.Context) error {
	return s.loop.stop(ctx)
}
