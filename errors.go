package handoff

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("handoff: no store configured")
	ErrStoreClosed     = errors.New("handoff: store closed")
	ErrMigrationFailed = errors.New("handoff: migration failed")

	// ErrPersistence marks a durable read/write failure. Callers may retry;
	// the in-memory state was not mutated.
	ErrPersistence = errors.New("handoff: persistence failure")

	// Not found errors.
	ErrWorkflowNotFound = errors.New("handoff: workflow not found")
	ErrTaskNotFound     = errors.New("handoff: task not found")
	ErrAgentNotFound    = errors.New("handoff: agent not found")

	// Conflict errors.
	ErrWorkflowExists = errors.New("handoff: workflow already exists")
	ErrAgentExists    = errors.New("handoff: agent already registered")

	// State errors. These are terminal for the attempted operation — a
	// retry with the same arguments will fail the same way.
	ErrInvalidTransition = errors.New("handoff: invalid state transition")
	ErrDependencyUnmet   = errors.New("handoff: dependency not completed")
	ErrInvalidInput      = errors.New("handoff: invalid input")

	// Lifecycle errors.
	ErrNotInitialized    = errors.New("handoff: coordinator not initialized")
	ErrCoordinatorClosed = errors.New("handoff: coordinator shut down")
)
