package uow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/infra/readstore"
	"cinema-order-engine/internal/infra/repository"
	"cinema-order-engine/internal/pkg/errs"
	"cinema-order-engine/internal/pkg/pgconv"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	errTransactionBegin  = errs.New("failed to begin transaction")
	errTransactionCommit = errs.New("failed to commit transaction")
)

const defaultBackoffBase = 50 * time.Millisecond

type PostgresUoW struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	maxRetries  int
	backoffBase time.Duration
}

func NewPostgresUoW(pool *pgxpool.Pool, logger *slog.Logger, maxRetries int) *PostgresUoW {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUoW{
		pool:        pool,
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: defaultBackoffBase,
	}
}

// ReadCommitted is enough: every row the engine depends on is locked explicitly
// (wallet FOR UPDATE, seat primary key). Only 40001/40P01 trigger a rerun of fn.
func (u *PostgresUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return u.runInTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (u *PostgresUoW) CommandReads() shared.CommandReads {
	return &commandReads{dbtx: u.pool}
}

// Avoids defer accumulation in retry loops to prevent connection leaks
func (u *PostgresUoW) runInTxWithOptions(ctx context.Context, options pgx.TxOptions, fn func(ctx context.Context, tx shared.Tx) error) error {
	for attempt := 0; ; attempt++ {
		pgxTx, err := u.pool.BeginTx(ctx, options)
		if err != nil {
			return errs.Mark(err, errTransactionBegin)
		}

		tx := &pgTx{dbtx: pgxTx}

		err = fn(ctx, tx)
		if err == nil {
			if err = pgxTx.Commit(ctx); err == nil {
				return nil
			}
			err = errs.Mark(err, errTransactionCommit)
		}

		if rollbackErr := pgxTx.Rollback(ctx); rollbackErr != nil {
			if !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				u.logger.Warn("rollback failed", "attempt", attempt+1, "error", rollbackErr.Error())
			}
		}

		if !pgconv.IsRetryableTxError(err) {
			return err
		}
		if attempt >= u.maxRetries {
			u.logger.Error("transaction failed after max retries",
				"attempts", attempt+1,
				"error", err.Error())
			return errs.Mark(err, errs.ErrTxRetriesExhausted)
		}

		waitTime := calculateBackoff(attempt, u.backoffBase)

		u.logger.Warn("retrying transaction due to retryable error",
			"attempt", attempt+1,
			"wait_ms", waitTime.Milliseconds(),
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

func calculateBackoff(attempt int, base time.Duration) time.Duration {
	waitTime := time.Duration(1<<attempt) * base
	jitter := cryptoRandInt63n(int64(waitTime / 5))
	return waitTime + time.Duration(jitter)
}

func cryptoRandInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	uval := binary.BigEndian.Uint64(buf[:]) & 0x7FFFFFFFFFFFFFFF
	// #nosec G115 -- masked to 63 bits above
	return int64(uval) % n
}

type pgTx struct {
	dbtx db.DBTX

	// Lazy-initialized repositories
	walletRepo      shared.WalletLedger
	seatRepo        shared.SeatInventory
	orderRepo       shared.OrderStore
	idempotencyRepo shared.IdempotencyRepository
	outboxRepo      shared.OutboxRepository
	commandReads    shared.CommandReads
}

func (t *pgTx) Wallets() shared.WalletLedger {
	if t.walletRepo == nil {
		t.walletRepo = repository.NewWalletRepository(t.dbtx)
	}
	return t.walletRepo
}

func (t *pgTx) Seats() shared.SeatInventory {
	if t.seatRepo == nil {
		t.seatRepo = repository.NewSeatRepository(t.dbtx)
	}
	return t.seatRepo
}

func (t *pgTx) Orders() shared.OrderStore {
	if t.orderRepo == nil {
		t.orderRepo = repository.NewOrderRepository(t.dbtx)
	}
	return t.orderRepo
}

func (t *pgTx) Idempotency() shared.IdempotencyRepository {
	if t.idempotencyRepo == nil {
		t.idempotencyRepo = repository.NewIdempotencyRepository(t.dbtx)
	}
	return t.idempotencyRepo
}

func (t *pgTx) Outbox() shared.OutboxRepository {
	if t.outboxRepo == nil {
		t.outboxRepo = repository.NewOutboxRepository(t.dbtx)
	}
	return t.outboxRepo
}

func (t *pgTx) Reads() shared.CommandReads {
	if t.commandReads == nil {
		t.commandReads = &commandReads{dbtx: t.dbtx}
	}
	return t.commandReads
}

type commandReads struct {
	dbtx db.DBTX

	// Lazy-initialized readstores
	userStore        *readstore.UserReadStore
	catalogStore     *readstore.CatalogReadStore
	idempotencyStore *readstore.IdempotencyReadStore
	receiptStore     *readstore.ReceiptReadStore
}

func (r *commandReads) UserByName(ctx context.Context, userName string) (*shared.UserSnapshot, error) {
	if r.userStore == nil {
		r.userStore = readstore.NewUserReadStore(r.dbtx)
	}
	return r.userStore.FindByName(ctx, userName)
}

func (r *commandReads) catalog() *readstore.CatalogReadStore {
	if r.catalogStore == nil {
		r.catalogStore = readstore.NewCatalogReadStore(r.dbtx)
	}
	return r.catalogStore
}

func (r *commandReads) ShowingByID(ctx context.Context, id int64) (*shared.ShowingSnapshot, error) {
	return r.catalog().ShowingByID(ctx, id)
}

func (r *commandReads) ProductsByIDs(ctx context.Context, ids []int64) ([]shared.ProductSnapshot, error) {
	return r.catalog().ProductsByIDs(ctx, ids)
}

func (r *commandReads) IdempotencyByKey(ctx context.Context, key uuid.UUID, userName string) (*shared.IdempotencyRecord, error) {
	if r.idempotencyStore == nil {
		r.idempotencyStore = readstore.NewIdempotencyReadStore(r.dbtx)
	}
	return r.idempotencyStore.Get(ctx, key, userName)
}

func (r *commandReads) ReceiptByID(ctx context.Context, orderID int64) (*shared.Receipt, error) {
	if r.receiptStore == nil {
		r.receiptStore = readstore.NewReceiptReadStore(r.dbtx)
	}
	return r.receiptStore.FindByID(ctx, orderID)
}
