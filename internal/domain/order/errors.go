package order

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-checkable reason code of an order failure.
type Kind string

const (
	KindUserNotFound         Kind = "USER_NOT_FOUND"
	KindShowingNotFound      Kind = "SHOWING_NOT_FOUND"
	KindEmptyOrder           Kind = "EMPTY_ORDER"
	KindSeatsRequired        Kind = "SEATS_REQUIRED"
	KindInvalidSeat          Kind = "INVALID_SEAT"
	KindInvalidQuantity      Kind = "INVALID_QUANTITY"
	KindProductUnavailable   Kind = "PRODUCT_UNAVAILABLE"
	KindInsufficientBalance  Kind = "INSUFFICIENT_BALANCE"
	KindSeatConflict         Kind = "SEAT_CONFLICT"
	KindIdempotencyKeyReused Kind = "IDEMPOTENCY_KEY_REUSED"
	KindPersistenceFailure   Kind = "PERSISTENCE_FAILURE"
)

func (k Kind) String() string {
	return string(k)
}

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrUserNotFound         = &Error{Kind: KindUserNotFound, msg: "user not found"}
	ErrShowingNotFound      = &Error{Kind: KindShowingNotFound, msg: "showing not found"}
	ErrEmptyOrder           = &Error{Kind: KindEmptyOrder, msg: "order has no tickets and no items"}
	ErrSeatsRequired        = &Error{Kind: KindSeatsRequired, msg: "ticket orders require at least one seat"}
	ErrInvalidSeat          = &Error{Kind: KindInvalidSeat, msg: "invalid seat"}
	ErrInvalidQuantity      = &Error{Kind: KindInvalidQuantity, msg: "invalid item quantity"}
	ErrProductUnavailable   = &Error{Kind: KindProductUnavailable, msg: "product unavailable"}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance, msg: "insufficient balance"}
	ErrSeatConflict         = &Error{Kind: KindSeatConflict, msg: "seat already taken"}
	ErrIdempotencyKeyReused = &Error{Kind: KindIdempotencyKeyReused, msg: "idempotency key reused with a different request"}
	ErrPersistenceFailure   = &Error{Kind: KindPersistenceFailure, msg: "persistence failure"}
)

type Error struct {
	Kind      Kind
	Seat      *Seat
	ProductID int64
	msg       string
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Message is the human-readable part without the wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

// Retryable reports whether the caller may resubmit the same request.
// Business outcomes are final; only storage faults may be transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistenceFailure
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func SeatConflict(seat Seat) *Error {
	s := seat
	return &Error{Kind: KindSeatConflict, Seat: &s, msg: "seat " + seat.String() + " already taken"}
}

func ProductUnavailable(productID int64) *Error {
	return &Error{Kind: KindProductUnavailable, ProductID: productID, msg: fmt.Sprintf("product %d unavailable", productID)}
}

func InvalidSeat(detail string) *Error {
	return newError(KindInvalidSeat, "invalid seat: "+detail)
}

func InvalidQuantity(detail string) *Error {
	return newError(KindInvalidQuantity, "invalid item quantity: "+detail)
}

func InsufficientBalance(balance, total Money) *Error {
	return newError(KindInsufficientBalance, fmt.Sprintf("insufficient balance: have %d, need %d", balance, total))
}

func PersistenceFailure(cause error) *Error {
	return &Error{Kind: KindPersistenceFailure, msg: "persistence failure", cause: cause}
}

// KindOf returns the order failure kind carried by err, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
