package dispatch

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("dispatch: repository cannot be nil")

	// ErrHandlerNil is returned when a worker is constructed without a handler.
	ErrHandlerNil = errors.New("dispatch: handler cannot be nil")

	// ErrNoJobToClaim is returned by repositories when no job is due.
	ErrNoJobToClaim = errors.New("dispatch: no job to claim")

	// ErrJobNotFound is returned when a job id is unknown to the repository.
	ErrJobNotFound = errors.New("dispatch: job not found")

	// ErrJobNotProcessing is returned when completing or failing a job that
	// is not claimed.
	ErrJobNotProcessing = errors.New("dispatch: job is not in processing state")

	// ErrInvalidMaxAttempts is returned when max attempts is outside 1-10.
	ErrInvalidMaxAttempts = errors.New("dispatch: max attempts must be between 1 and 10")

	// ErrWorkerAlreadyStarted is returned when Start is called twice.
	ErrWorkerAlreadyStarted = errors.New("dispatch: worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start.
	ErrWorkerNotStarted = errors.New("dispatch: worker not started")
)
