package fiber

import "errors"

// Standard errors returned by fiber lifecycle operations.
var (
	// ErrFiberNotReady is returned by Resume when the fiber is not in the
	// READY state (it is already RUNNING or has reached TERM).
	ErrFiberNotReady = errors.New("fiber: not in READY state")

	// ErrFiberRunning is returned by Resume when self is already the
	// currently running fiber on this goroutine.
	ErrFiberRunning = errors.New("fiber: cannot resume the currently running fiber")

	// ErrFiberResetNotTerm is returned by Reset when the fiber is not in
	// the TERM state.
	ErrFiberResetNotTerm = errors.New("fiber: reset only allowed from TERM state")

	// ErrCannotResumeRoot is returned by Resume when called on a fiber
	// that has no owned stack (a goroutine's root fiber, which is also the
	// dispatcher of a spawned worker).
	ErrCannotResumeRoot = errors.New("fiber: cannot resume a stackless root fiber")

	// ErrCannotResetRoot is returned by Reset when called on a root fiber.
	ErrCannotResetRoot = errors.New("fiber: cannot reset a stackless root fiber")
)

// Standard errors returned by Scheduler operations.
var (
	// ErrSchedulerStopped is returned by Schedule when the scheduler has
	// already stopped accepting work.
	ErrSchedulerStopped = errors.New("fiber: scheduler is stopped")

	// ErrSchedulerRunning is returned by Start when called on a scheduler
	// that is already running.
	ErrSchedulerRunning = errors.New("fiber: scheduler is already running")

	// ErrNotCallerThread is returned by Stop when use_caller is set and
	// Stop is invoked from a goroutine other than the one that called
	// Start (the goroutine that only constructed the Scheduler is not
	// checked).
	ErrNotCallerThread = errors.New("fiber: stop must be called from the caller thread")
)

// Standard errors returned by IOManager operations.
var (
	// ErrEventAlreadyRegistered is returned by AddEvent when the requested
	// event is already registered on the fd (the spec's "duplicate add"
	// rejection: rejected without side effects).
	ErrEventAlreadyRegistered = errors.New("fiber: event already registered on fd")

	// ErrFDOutOfRange is returned by AddEvent when the fd is negative.
	ErrFDOutOfRange = errors.New("fiber: fd out of range")

	// ErrPollerClosed is returned by poller operations after Close.
	ErrPollerClosed = errors.New("fiber: poller closed")
)

// Standard errors returned by TimerManager operations.
var (
	// ErrTimerNotFound describes a handle that no longer references a
	// pending timer (already fired or cancelled). Timer's Cancel, Refresh
	// and Reset do not return it; they report that case by returning
	// false.
	ErrTimerNotFound = errors.New("fiber: timer not found")
)
