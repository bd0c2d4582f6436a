package session

import "errors"

var (
	// ErrBootstrapInFlight is returned when Bootstrap is called while a
	// previous reconciliation is still running.
	ErrBootstrapInFlight = errors.New("bootstrap already in flight")

	// ErrSuperseded is returned by Bootstrap when an explicit state change
	// (login, logout) landed while the reconciliation was suspended on a
	// network call; the reconciliation's result was discarded.
	ErrSuperseded = errors.New("reconciliation superseded")

	// ErrNoAccount is returned by operations that require a signed-in
	// account when none is present.
	ErrNoAccount = errors.New("no signed-in account")

	// ErrInvalidTransition is returned when a UI-originated completion
	// event arrives in a phase it cannot apply to.
	ErrInvalidTransition = errors.New("invalid phase transition")
)
