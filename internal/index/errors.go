package index

import "errors"

var (
	// ErrAlreadyRunning is returned when the project already has a run
	// pending or in progress.
	ErrAlreadyRunning = errors.New("indexing already in progress")

	// ErrProjectNotFound is returned for a project with no status row.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectPathMissing fails a run whose root does not exist.
	ErrProjectPathMissing = errors.New("project path does not exist")

	// ErrShuttingDown rejects new runs once Shutdown has begun.
	ErrShuttingDown = errors.New("index manager is shutting down")

	ErrEmptyQuery = errors.New("empty search query")
)
