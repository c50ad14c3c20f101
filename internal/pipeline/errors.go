package pipeline

import "errors"

// Error taxonomy for a run. Failures are wrapped with context via %w so
// callers can match on the sentinel with errors.Is while keeping the
// underlying cause in the message.
var (
	// ErrConfig marks an invalid pipeline configuration. It is returned
	// before any source or sink I/O is attempted.
	ErrConfig = errors.New("invalid pipeline configuration")

	// ErrSourceOpen marks a source that is missing, unreadable, or whose
	// schema is incompatible with the run's output schema.
	ErrSourceOpen = errors.New("source open failed")

	// ErrSourceRead marks an I/O failure while pulling records.
	ErrSourceRead = errors.New("source read failed")

	// ErrSinkOpen marks a sink that could not be created.
	ErrSinkOpen = errors.New("sink open failed")

	// ErrSinkWrite marks an append or close failure on a sink. Records
	// already appended stay in place; there is no rollback.
	ErrSinkWrite = errors.New("sink write failed")

	// ErrRouteClosed marks a routed batch that could not be delivered because
	// the run was already shutting down (a writer or another reader failed).
	ErrRouteClosed = errors.New("routing channel closed")
)
