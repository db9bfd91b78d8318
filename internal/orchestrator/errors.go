package orchestrator

import "errors"

var (
	// ErrCapacityExceeded is returned when the agent or task store is at its
	// configured limit.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrDuplicateAgent is returned when registering an agent ID that is
	// already present.
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrAgentBusy is returned for operations that require an idle agent.
	ErrAgentBusy = errors.New("agent is busy")

	// ErrNotFound is returned for lookups of unknown agent, task or
	// workflow IDs.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is attempted from a
	// lifecycle state that forbids it.
	ErrInvalidState = errors.New("invalid state")

	// ErrTimeout is returned when a wait for task completion exceeds its
	// budget.
	ErrTimeout = errors.New("timeout")
)
