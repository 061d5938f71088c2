package shared

import (
	"context"
	"time"

	"cinema-order-engine/internal/domain/order"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations with retry logic
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// CommandReads: Direct access to command reads for validation outside transactions
	CommandReads() CommandReads
}

// Tx exposes the repositories bound to one open transaction.
type Tx interface {
	Wallets() WalletLedger
	Seats() SeatInventory
	Orders() OrderStore
	Idempotency() IdempotencyRepository
	Outbox() OutboxRepository
	Reads() CommandReads
}

type CommandReads interface {
	UserByName(ctx context.Context, userName string) (*UserSnapshot, error)
	ShowingByID(ctx context.Context, id int64) (*ShowingSnapshot, error)
	// ProductsByIDs omits unknown and unavailable products.
	ProductsByIDs(ctx context.Context, ids []int64) ([]ProductSnapshot, error)
	IdempotencyByKey(ctx context.Context, key uuid.UUID, userName string) (*IdempotencyRecord, error)
	ReceiptByID(ctx context.Context, orderID int64) (*Receipt, error)
}

type WalletLedger interface {
	// LockBalance holds the payer's row until the transaction ends.
	LockBalance(ctx context.Context, userName string) (order.Money, error)
	// Debit returns the balance after the decrement.
	Debit(ctx context.Context, userName string, amount order.Money) (order.Money, error)
}

type SeatInventory interface {
	// TryClaim reports false when another order already owns the seat.
	TryClaim(ctx context.Context, showingID int64, seat order.Seat, orderID int64) (bool, error)
}

type OrderStore interface {
	CreateHeader(ctx context.Context, o order.NewOrder) (int64, error)
	AddSeat(ctx context.Context, orderID int64, seq int, showingID int64, seat order.Seat) error
	AddLine(ctx context.Context, orderID int64, seq int, line order.PricedLine) error
}

type IdempotencyRepository interface {
	Save(ctx context.Context, rec IdempotencyRecord) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	// ClaimPending locks up to limit unpublished events for the caller's transaction.
	ClaimPending(ctx context.Context, limit, maxAttempts int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
