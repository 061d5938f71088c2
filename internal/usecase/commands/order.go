package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/pkg/clock"
	"cinema-order-engine/internal/pkg/errs"
	"cinema-order-engine/internal/pkg/metrics"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

// PlaceOrderInput carries seats either as parsed Seats or as raw "A-1"
// SeatLabels; labels are parsed by the engine and added to Seats.
type PlaceOrderInput struct {
	Payer          string
	ShowingID      *int64
	Seats          []order.Seat
	SeatLabels     []string
	Items          []order.ItemRequest
	IdempotencyKey *uuid.UUID
}

func (in PlaceOrderInput) seats() ([]order.Seat, error) {
	if len(in.SeatLabels) == 0 {
		return in.Seats, nil
	}
	out := make([]order.Seat, 0, len(in.Seats)+len(in.SeatLabels))
	out = append(out, in.Seats...)
	for _, label := range in.SeatLabels {
		seat, err := order.ParseSeat(label)
		if err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, nil
}

type ShowingInfo struct {
	ID       int64
	Title    string
	StartsAt time.Time
	Studio   string
}

type PlaceOrderResult struct {
	OrderID          int64
	Payer            string
	Total            order.Money
	TicketUnitPrice  order.Money
	SeatCount        int
	Showing          *ShowingInfo
	Seats            []order.Seat
	Lines            []order.PricedLine
	RemainingBalance order.Money
	CreatedAt        time.Time
	Replayed         bool
}

//go:generate mockgen -source=order.go -destination=../../../tests/mock/commands/order_commands_mock.go -package=commandsmock OrderCommands
type OrderCommands interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error)
}

type OrderUseCaseConfig struct {
	IdempotencyTTL time.Duration
}

type orderUseCaseImpl struct {
	uow            shared.UnitOfWork
	clock          clock.Clock
	metrics        *metrics.OrderMetrics
	logger         *slog.Logger
	idempotencyTTL time.Duration
}

func NewOrderUseCase(
	uow shared.UnitOfWork,
	clk clock.Clock,
	m *metrics.OrderMetrics,
	logger *slog.Logger,
	cfg OrderUseCaseConfig,
) OrderCommands {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &orderUseCaseImpl{
		uow:            uow,
		clock:          clk,
		metrics:        m,
		logger:         logger,
		idempotencyTTL: ttl,
	}
}

// PlaceOrder validates and prices the request, then commits header, seats, lines,
// debit and the order.placed event in one transaction. Every failure is an
// *order.Error; nothing is retried here.
func (uc *orderUseCaseImpl) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	seats, err := in.seats()
	if err != nil {
		return nil, uc.reject(ctx, in.Payer, err)
	}

	plan, err := order.NewPlan(in.Payer, in.ShowingID, seats, in.Items)
	if err != nil {
		return nil, uc.reject(ctx, in.Payer, err)
	}

	if err := uc.precheck(ctx, plan); err != nil {
		return nil, uc.reject(ctx, plan.Payer, err)
	}

	var result *PlaceOrderResult
	err = uc.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		r, err := uc.placeInTx(ctx, tx, plan, in.IdempotencyKey)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, uc.reject(ctx, plan.Payer, err)
	}

	if result.Replayed {
		uc.metrics.ObserveOutcome("replayed")
		uc.logger.InfoContext(ctx, "order replayed",
			"order_id", result.OrderID,
			"user_name", plan.Payer)
		return result, nil
	}

	uc.metrics.ObservePlaced(result.Total.Int64(), result.SeatCount)
	uc.logger.InfoContext(ctx, "order placed",
		"order_id", result.OrderID,
		"user_name", plan.Payer,
		"total", result.Total.Int64(),
		"seats", result.SeatCount,
		"lines", len(result.Lines))
	return result, nil
}

// precheck fails fast on unknown users, showings and products before any lock is
// taken. The transaction repeats the catalog reads against live data.
func (uc *orderUseCaseImpl) precheck(ctx context.Context, plan *order.Plan) error {
	reads := uc.uow.CommandReads()

	if _, err := reads.UserByName(ctx, plan.Payer); err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return order.ErrUserNotFound
		}
		return err
	}

	_, _, err := uc.quote(ctx, reads, plan)
	return err
}

func (uc *orderUseCaseImpl) quote(ctx context.Context, reads shared.CommandReads, plan *order.Plan) (*order.Quote, *shared.ShowingSnapshot, error) {
	var showing *shared.ShowingSnapshot
	if plan.HasTickets() {
		s, err := reads.ShowingByID(ctx, *plan.ShowingID)
		if err != nil {
			if infra.IsKind(err, infra.KindNotFound) {
				return nil, nil, order.ErrShowingNotFound
			}
			return nil, nil, err
		}
		showing = s
	}

	products := []shared.ProductSnapshot{}
	if len(plan.Items) > 0 {
		p, err := reads.ProductsByIDs(ctx, plan.ProductIDs())
		if err != nil {
			return nil, nil, err
		}
		products = p
	}

	q, err := order.Price(plan, showing.ToDomain(), shared.ProductsToDomain(products))
	if err != nil {
		return nil, nil, err
	}
	return q, showing, nil
}

func (uc *orderUseCaseImpl) placeInTx(ctx context.Context, tx shared.Tx, plan *order.Plan, key *uuid.UUID) (*PlaceOrderResult, error) {
	balance, err := tx.Wallets().LockBalance(ctx, plan.Payer)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, order.ErrUserNotFound
		}
		return nil, err
	}

	fingerprint := plan.Fingerprint()
	if key != nil {
		replayed, err := uc.replay(ctx, tx, *key, plan.Payer, fingerprint, balance)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	q, showing, err := uc.quote(ctx, tx.Reads(), plan)
	if err != nil {
		return nil, err
	}

	if q.Total > balance {
		return nil, order.InsufficientBalance(balance, q.Total)
	}

	now := uc.clock.Now()
	orderID, err := tx.Orders().CreateHeader(ctx, order.NewOrderFromQuote(plan, q, now))
	if err != nil {
		return nil, err
	}

	if plan.HasTickets() {
		if err := uc.claimSeats(ctx, tx, *plan.ShowingID, plan.Seats, orderID); err != nil {
			return nil, err
		}
	}

	for i, line := range q.Lines {
		if err := tx.Orders().AddLine(ctx, orderID, i+1, line); err != nil {
			return nil, err
		}
	}

	remaining, err := tx.Wallets().Debit(ctx, plan.Payer, q.Total)
	if err != nil {
		if infra.IsKind(err, infra.KindCheckViolated) {
			return nil, order.InsufficientBalance(balance, q.Total)
		}
		return nil, err
	}

	if err := uc.enqueuePlaced(ctx, tx, plan, q, orderID, now); err != nil {
		return nil, err
	}

	if key != nil {
		err := tx.Idempotency().Save(ctx, shared.IdempotencyRecord{
			Key:         *key,
			UserName:    plan.Payer,
			RequestHash: fingerprint,
			OrderID:     orderID,
			ExpiresAt:   now.Add(uc.idempotencyTTL),
		})
		if err != nil {
			if infra.IsKind(err, infra.KindDuplicateKey) {
				return nil, order.ErrIdempotencyKeyReused
			}
			return nil, err
		}
	}

	return &PlaceOrderResult{
		OrderID:          orderID,
		Payer:            plan.Payer,
		Total:            q.Total,
		TicketUnitPrice:  q.TicketUnitPrice,
		SeatCount:        q.SeatCount,
		Showing:          showingInfo(showing),
		Seats:            plan.Seats,
		Lines:            q.Lines,
		RemainingBalance: remaining,
		CreatedAt:        now,
	}, nil
}

// claimSeats walks seats in row-major order so overlapping requests always
// contend in the same sequence.
func (uc *orderUseCaseImpl) claimSeats(ctx context.Context, tx shared.Tx, showingID int64, seats []order.Seat, orderID int64) error {
	for i, seat := range seats {
		claimed, err := tx.Seats().TryClaim(ctx, showingID, seat, orderID)
		if err != nil {
			return err
		}
		if !claimed {
			return order.SeatConflict(seat)
		}
		if err := tx.Orders().AddSeat(ctx, orderID, i+1, showingID, seat); err != nil {
			return err
		}
	}
	return nil
}

func (uc *orderUseCaseImpl) replay(ctx context.Context, tx shared.Tx, key uuid.UUID, payer, fingerprint string, balance order.Money) (*PlaceOrderResult, error) {
	rec, err := tx.Reads().IdempotencyByKey(ctx, key, payer)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if rec.RequestHash != fingerprint {
		return nil, order.ErrIdempotencyKeyReused
	}

	receipt, err := tx.Reads().ReceiptByID(ctx, rec.OrderID)
	if err != nil {
		return nil, errs.Wrapf(err, "load receipt of order %d", rec.OrderID)
	}

	return &PlaceOrderResult{
		OrderID:          receipt.OrderID,
		Payer:            receipt.UserName,
		Total:            receipt.Total,
		TicketUnitPrice:  receipt.TicketUnitPrice,
		SeatCount:        len(receipt.Seats),
		Showing:          showingInfo(receipt.Showing),
		Seats:            receipt.Seats,
		Lines:            receipt.Lines,
		RemainingBalance: balance,
		CreatedAt:        receipt.CreatedAt,
		Replayed:         true,
	}, nil
}

func (uc *orderUseCaseImpl) enqueuePlaced(ctx context.Context, tx shared.Tx, plan *order.Plan, q *order.Quote, orderID int64, now time.Time) error {
	event := OrderPlacedEvent{
		EventID:   uuid.New(),
		Type:      TopicOrderPlaced,
		OrderID:   orderID,
		UserName:  plan.Payer,
		ShowingID: plan.ShowingID,
		Seats:     make([]string, len(plan.Seats)),
		Items:     make([]OrderPlacedItem, len(q.Lines)),
		Total:     q.Total.Int64(),
		CreatedAt: now,
	}
	for i, s := range plan.Seats {
		event.Seats[i] = s.String()
	}
	for i, l := range q.Lines {
		event.Items[i] = OrderPlacedItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice.Int64()}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal order placed event")
	}

	return tx.Outbox().Enqueue(ctx, shared.OutboxEvent{
		EventID:   event.EventID,
		Topic:     TopicOrderPlaced,
		Payload:   payload,
		CreatedAt: now,
	})
}

// reject converts err to an *order.Error, records it and logs it. Storage and
// context errors become PersistenceFailure.
func (uc *orderUseCaseImpl) reject(ctx context.Context, payer string, err error) error {
	kind := order.KindOf(err)
	if kind == "" {
		err = order.PersistenceFailure(errs.Mark(err, errs.ErrDatabaseOperationFailed))
		kind = order.KindPersistenceFailure
	}

	uc.metrics.ObserveOutcome(strings.ToLower(kind.String()))

	attrs := []any{"user_name", payer, "kind", kind.String()}
	var oe *order.Error
	if errs.As(err, &oe) {
		if oe.Seat != nil {
			attrs = append(attrs, "seat", oe.Seat.String())
		}
		if oe.ProductID != 0 {
			attrs = append(attrs, "product_id", oe.ProductID)
		}
	}

	if kind == order.KindPersistenceFailure {
		uc.logger.ErrorContext(ctx, "order failed", append(attrs, "error", err.Error())...)
	} else {
		uc.logger.InfoContext(ctx, "order rejected", attrs...)
	}
	return err
}

func showingInfo(s *shared.ShowingSnapshot) *ShowingInfo {
	if s == nil {
		return nil
	}
	return &ShowingInfo{
		ID:       s.ID,
		Title:    s.MovieTitle,
		StartsAt: s.StartsAt,
		Studio:   s.StudioName,
	}
}
