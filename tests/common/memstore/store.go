//go:build unit

// Package memstore is an in-memory shared.UnitOfWork. Transactions run one at a
// time against a copy of the state and are committed by swapping the copy in,
// so a failed unit leaves no trace.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

type seatKey struct {
	showingID int64
	seat      order.Seat
}

type idemKey struct {
	key      uuid.UUID
	userName string
}

type product struct {
	snapshot  shared.ProductSnapshot
	available bool
}

type StoredOrder struct {
	ID     int64
	Header order.NewOrder
	Seats  []order.Seat
	Lines  []order.PricedLine
}

type storedEvent struct {
	event       shared.OutboxEvent
	publishedAt *time.Time
	lastError   string
}

type state struct {
	users       map[string]shared.UserSnapshot
	showings    map[int64]shared.ShowingSnapshot
	products    map[int64]product
	seats       map[seatKey]int64
	orders      map[int64]*StoredOrder
	idempotency map[idemKey]shared.IdempotencyRecord
	events      []*storedEvent
	nextOrderID int64
	nextEventID int64
}

func (s *state) clone() *state {
	c := &state{
		users:       maps.Clone(s.users),
		showings:    maps.Clone(s.showings),
		products:    maps.Clone(s.products),
		seats:       maps.Clone(s.seats),
		orders:      make(map[int64]*StoredOrder, len(s.orders)),
		idempotency: maps.Clone(s.idempotency),
		events:      make([]*storedEvent, len(s.events)),
		nextOrderID: s.nextOrderID,
		nextEventID: s.nextEventID,
	}
	for id, o := range s.orders {
		cp := *o
		cp.Seats = slices.Clone(o.Seats)
		cp.Lines = slices.Clone(o.Lines)
		c.orders[id] = &cp
	}
	for i, e := range s.events {
		cp := *e
		c.events[i] = &cp
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	state    *state
	failures map[string]error
	now      func() time.Time
	commits  int
}

func New() *Store {
	return &Store{
		state: &state{
			users:       map[string]shared.UserSnapshot{},
			showings:    map[int64]shared.ShowingSnapshot{},
			products:    map[int64]product{},
			seats:       map[seatKey]int64{},
			orders:      map[int64]*StoredOrder{},
			idempotency: map[idemKey]shared.IdempotencyRecord{},
		},
		failures: map[string]error{},
		now:      time.Now,
	}
}

// SetNow replaces the clock used for idempotency expiry.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOn makes the named repository operation return err inside transactions,
// e.g. "AddLine" or "Debit".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) AddUser(name string, balance order.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[name] = shared.UserSnapshot{UserName: name, DisplayName: name, Balance: balance}
}

func (s *Store) AddShowing(sh shared.ShowingSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.showings[sh.ID] = sh
}

func (s *Store) AddProduct(p shared.ProductSnapshot, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = product{snapshot: p, available: available}
}

func (s *Store) SetProductPrice(id int64, price order.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.snapshot.UnitPrice = price
	s.state.products[id] = p
}

func (s *Store) Balance(name string) order.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.users[name].Balance
}

func (s *Store) Order(id int64) *StoredOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *Store) SeatOwner(showingID int64, seat order.Seat) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.seats[seatKey{showingID: showingID, seat: seat}]
	return id, ok
}

func (s *Store) ClaimedSeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.seats)
}

func (s *Store) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.events)
}

func (s *Store) PublishedEventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.state.events {
		if e.publishedAt != nil {
			n++
		}
	}
	return n
}

func (s *Store) Events() []shared.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.OutboxEvent, len(s.state.events))
	for i, e := range s.state.events {
		out[i] = e.event
	}
	return out
}

type EventStatus struct {
	Attempts  int
	Published bool
	LastError string
}

func (s *Store) EventStatus(id int64) (EventStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.state.events {
		if e.event.ID == id {
			return EventStatus{Attempts: e.event.Attempts, Published: e.publishedAt != nil, LastError: e.lastError}, true
		}
	}
	return EventStatus{}, false
}

func (s *Store) IdempotencyKeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.idempotency)
}

func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	tx := &memTx{st: work, store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = work
	s.commits++
	return nil
}

func (s *Store) CommandReads() shared.CommandReads {
	return &lockedReads{store: s}
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// lockedReads serves reads outside a transaction against committed state.
type lockedReads struct {
	store *Store
}

func (r *lockedReads) reads() *reads {
	return &reads{st: r.store.state, now: r.store.now}
}

func (r *lockedReads) UserByName(ctx context.Context, userName string) (*shared.UserSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.reads().UserByName(ctx, userName)
}

func (r *lockedReads) ShowingByID(ctx context.Context, id int64) (*shared.ShowingSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.reads().ShowingByID(ctx, id)
}

func (r *lockedReads) ProductsByIDs(ctx context.Context, ids []int64) ([]shared.ProductSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.reads().ProductsByIDs(ctx, ids)
}

func (r *lockedReads) IdempotencyByKey(ctx context.Context, key uuid.UUID, userName string) (*shared.IdempotencyRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.reads().IdempotencyByKey(ctx, key, userName)
}

func (r *lockedReads) ReceiptByID(ctx context.Context, orderID int64) (*shared.Receipt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.reads().ReceiptByID(ctx, orderID)
}

type reads struct {
	st  *state
	now func() time.Time
}

func notFound(msg string) error {
	return infra.WrapRepoErr(msg, nil, infra.KindNotFound)
}

func (r *reads) UserByName(_ context.Context, userName string) (*shared.UserSnapshot, error) {
	u, ok := r.st.users[userName]
	if !ok {
		return nil, notFound("user not found")
	}
	return &u, nil
}

func (r *reads) ShowingByID(_ context.Context, id int64) (*shared.ShowingSnapshot, error) {
	sh, ok := r.st.showings[id]
	if !ok {
		return nil, notFound("showing not found")
	}
	return &sh, nil
}

func (r *reads) ProductsByIDs(_ context.Context, ids []int64) ([]shared.ProductSnapshot, error) {
	out := []shared.ProductSnapshot{}
	for _, id := range ids {
		if p, ok := r.st.products[id]; ok && p.available {
			out = append(out, p.snapshot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reads) IdempotencyByKey(_ context.Context, key uuid.UUID, userName string) (*shared.IdempotencyRecord, error) {
	rec, ok := r.st.idempotency[idemKey{key: key, userName: userName}]
	if !ok || !r.now().Before(rec.ExpiresAt) {
		return nil, notFound("idempotency key not found")
	}
	return &rec, nil
}

func (r *reads) ReceiptByID(_ context.Context, orderID int64) (*shared.Receipt, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return nil, notFound("order not found")
	}
	rc := &shared.Receipt{
		OrderID:         o.ID,
		UserName:        o.Header.Payer,
		TicketUnitPrice: o.Header.TicketUnitPrice,
		Total:           o.Header.Total,
		CreatedAt:       o.Header.CreatedAt,
		Seats:           slices.Clone(o.Seats),
		Lines:           slices.Clone(o.Lines),
	}
	if o.Header.ShowingID != nil {
		if sh, ok := r.st.showings[*o.Header.ShowingID]; ok {
			rc.Showing = &sh
		}
	}
	return rc, nil
}

type memTx struct {
	st    *state
	store *Store
}

func (t *memTx) Wallets() shared.WalletLedger              { return t }
func (t *memTx) Seats() shared.SeatInventory               { return t }
func (t *memTx) Orders() shared.OrderStore                 { return t }
func (t *memTx) Idempotency() shared.IdempotencyRepository { return t }
func (t *memTx) Outbox() shared.OutboxRepository           { return t }
func (t *memTx) Reads() shared.CommandReads                { return &reads{st: t.st, now: t.store.now} }

func (t *memTx) LockBalance(_ context.Context, userName string) (order.Money, error) {
	if err := t.store.fail("LockBalance"); err != nil {
		return 0, err
	}
	u, ok := t.st.users[userName]
	if !ok {
		return 0, notFound("wallet not found")
	}
	return u.Balance, nil
}

func (t *memTx) Debit(_ context.Context, userName string, amount order.Money) (order.Money, error) {
	if err := t.store.fail("Debit"); err != nil {
		return 0, err
	}
	u, ok := t.st.users[userName]
	if !ok {
		return 0, notFound("wallet not found")
	}
	if u.Balance-amount < 0 {
		return 0, infra.WrapRepoErr("balance would go negative", nil, infra.KindCheckViolated)
	}
	u.Balance -= amount
	t.st.users[userName] = u
	return u.Balance, nil
}

func (t *memTx) TryClaim(_ context.Context, showingID int64, seat order.Seat, orderID int64) (bool, error) {
	if err := t.store.fail("TryClaim"); err != nil {
		return false, err
	}
	k := seatKey{showingID: showingID, seat: seat}
	if _, taken := t.st.seats[k]; taken {
		return false, nil
	}
	t.st.seats[k] = orderID
	return true, nil
}

func (t *memTx) CreateHeader(_ context.Context, o order.NewOrder) (int64, error) {
	if err := t.store.fail("CreateHeader"); err != nil {
		return 0, err
	}
	t.st.nextOrderID++
	id := t.st.nextOrderID
	t.st.orders[id] = &StoredOrder{ID: id, Header: o}
	return id, nil
}

func (t *memTx) AddSeat(_ context.Context, orderID int64, _ int, _ int64, seat order.Seat) error {
	if err := t.store.fail("AddSeat"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return infra.WrapRepoErr("order missing", nil, infra.KindForeignKeyViolated)
	}
	o.Seats = append(o.Seats, seat)
	return nil
}

func (t *memTx) AddLine(_ context.Context, orderID int64, _ int, line order.PricedLine) error {
	if err := t.store.fail("AddLine"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return infra.WrapRepoErr("order missing", nil, infra.KindForeignKeyViolated)
	}
	o.Lines = append(o.Lines, line)
	return nil
}

func (t *memTx) Save(_ context.Context, rec shared.IdempotencyRecord) error {
	if err := t.store.fail("SaveIdempotency"); err != nil {
		return err
	}
	k := idemKey{key: rec.Key, userName: rec.UserName}
	if existing, ok := t.st.idempotency[k]; ok && t.store.now().Before(existing.ExpiresAt) {
		return infra.WrapRepoErr("idempotency key already in use", nil, infra.KindDuplicateKey)
	}
	t.st.idempotency[k] = rec
	return nil
}

func (t *memTx) DeleteExpired(_ context.Context) (int64, error) {
	now := t.store.now()
	var n int64
	for k, rec := range t.st.idempotency {
		if !now.Before(rec.ExpiresAt) {
			delete(t.st.idempotency, k)
			n++
		}
	}
	return n, nil
}

func (t *memTx) Enqueue(_ context.Context, event shared.OutboxEvent) error {
	if err := t.store.fail("Enqueue"); err != nil {
		return err
	}
	t.st.nextEventID++
	event.ID = t.st.nextEventID
	t.st.events = append(t.st.events, &storedEvent{event: event})
	return nil
}

func (t *memTx) ClaimPending(_ context.Context, limit, maxAttempts int) ([]shared.OutboxEvent, error) {
	if err := t.store.fail("ClaimPending"); err != nil {
		return nil, err
	}
	out := []shared.OutboxEvent{}
	for _, e := range t.st.events {
		if len(out) >= limit {
			break
		}
		if e.publishedAt == nil && e.event.Attempts < maxAttempts {
			out = append(out, e.event)
		}
	}
	return out, nil
}

func (t *memTx) findEvent(id int64) *storedEvent {
	for _, e := range t.st.events {
		if e.event.ID == id {
			return e
		}
	}
	return nil
}

func (t *memTx) MarkPublished(_ context.Context, id int64, at time.Time) error {
	e := t.findEvent(id)
	if e == nil {
		return notFound("event not found")
	}
	e.event.Attempts++
	e.publishedAt = &at
	e.lastError = ""
	return nil
}

func (t *memTx) MarkFailed(_ context.Context, id int64, reason string) error {
	e := t.findEvent(id)
	if e == nil {
		return notFound("event not found")
	}
	e.event.Attempts++
	e.lastError = reason
	return nil
}
