package errs

import "errors"

// Infrastructure sentinels shared across layers
var (
	ErrTxRetriesExhausted = errors.New("transaction retries exhausted")
	ErrPublisherClosed    = errors.New("event publisher closed")
	ErrPublishNacked      = errors.New("broker did not confirm publish")
	ErrRelayDisabled      = errors.New("outbox relay disabled")

	ErrDatabaseOperationFailed = errors.New("database operation failed")
)
