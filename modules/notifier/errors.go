package notifier

import "errors"

var (
	ErrNotFound          = errors.New("notification not found")
	ErrDuplicateKey      = errors.New("notification with this idempotency key already exists")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotRetryable      = errors.New("only failed notifications can be retried")
	ErrLogNotFound       = errors.New("delivery log entry not found")

	ErrStorageNil  = errors.New("storage cannot be nil")
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")
	ErrRegistryNil = errors.New("channel registry cannot be nil")
	ErrSourceNil   = errors.New("template source cannot be nil")
)
