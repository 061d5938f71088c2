package worker

import (
	"context"
	"log/slog"
	"time"

	"cinema-order-engine/internal/pkg/clock"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/errs"
	"cinema-order-engine/internal/pkg/metrics"
	"cinema-order-engine/internal/usecase/shared"
)

type EventPublisher interface {
	Publish(ctx context.Context, event shared.OutboxEvent) error
}

// OutboxRelay forwards committed order events to the broker. Delivery is
// at-least-once: an event published just before its batch fails to commit is
// sent again on the next pass.
type OutboxRelay struct {
	uow         shared.UnitOfWork
	publisher   EventPublisher
	clock       clock.Clock
	metrics     *metrics.RelayMetrics
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	loop        *periodic
}

func NewOutboxRelay(
	uow shared.UnitOfWork,
	publisher EventPublisher,
	clk clock.Clock,
	m *metrics.RelayMetrics,
	logger *slog.Logger,
	cfg config.BrokerConfig,
) *OutboxRelay {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}
	r := &OutboxRelay{
		uow:         uow,
		publisher:   publisher,
		clock:       clk,
		metrics:     m,
		logger:      logger,
		interval:    interval,
		batchSize:   batch,
		maxAttempts: attempts,
	}
	r.loop = &periodic{name: "outbox relay", interval: interval, logger: logger, tick: r.drain}
	return r
}

// RelayOnce claims one batch and publishes it. Events that fail to publish stay
// pending with their attempt count raised until maxAttempts is reached.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	if r.publisher == nil {
		return 0, errs.ErrRelayDisabled
	}

	published := 0
	err := r.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		published = 0
		events, err := tx.Outbox().ClaimPending(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}

		for _, ev := range events {
			if pubErr := r.publisher.Publish(ctx, ev); pubErr != nil {
				r.observeFailed()
				r.logger.WarnContext(ctx, "outbox publish failed",
					"event_id", ev.EventID.String(),
					"attempts", ev.Attempts+1,
					"error", pubErr.Error())
				if err := tx.Outbox().MarkFailed(ctx, ev.ID, pubErr.Error()); err != nil {
					return err
				}
				continue
			}
			if err := tx.Outbox().MarkPublished(ctx, ev.ID, r.clock.Now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(err, "relay outbox batch")
	}

	if published > 0 && r.metrics != nil {
		r.metrics.Published.Add(float64(published))
	}
	return published, nil
}

func (r *OutboxRelay) observeFailed() {
	if r.metrics != nil {
		r.metrics.Failed.Inc()
	}
}

// Start launches the polling loop. It is a no-op without a publisher.
func (r *OutboxRelay) Start() {
	if r.publisher == nil {
		r.logger.Info("outbox relay disabled: no broker configured")
		return
	}
	r.loop.start()
}

func (r *OutboxRelay) Stop(ctx context.Context) error {
	return r.loop.stop(ctx)
}

// drain relays full batches until the backlog is shorter than one batch.
func (r *OutboxRelay) drain(ctx context.Context) {
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("outbox relay pass failed", "error", err.Error())
			}
			return
		}
		if n < r.batchSize {
			return
		}
	}
}
