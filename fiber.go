package fiber

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is a Fiber's position in its lifecycle state machine.
type State int

const (
	// StateReady means the fiber has never run, or has yielded and is
	// waiting to be resumed again.
	StateReady State = iota
	// StateRunning means the fiber currently owns its goroutine's
	// execution.
	StateRunning
	// StateTerm means the fiber's entry callback has returned. A TERM
	// fiber only leaves this state via Reset.
	StateTerm
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateTerm:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

var fiberIDCounter atomic.Uint64

// DefaultStackSize is the spec's default stack allocation. Go fibers run
// on goroutines with growable stacks, so this is retained only as the
// value callers pass to Create; it has no effect on goroutine stack size
// or growth.
const DefaultStackSize = 128 * 1024

// Fiber is a stackful coroutine. Since Go offers no application-visible
// machine context switch, each non-root Fiber owns a dedicated goroutine
// parked on an unbuffered channel handoff between turns; that goroutine's
// own growable stack plays the role of the fiber's allocated stack. A
// root fiber (see [GetThis]) has no goroutine of its own: it represents
// the calling goroutine's original, implicit "stack".
type Fiber struct {
	id              uint64
	name            string
	runsInScheduler bool
	cb              func()

	mu    sync.Mutex
	state State

	isRoot bool

	// resumeCh/yieldCh implement the handoff: Resume sends on resumeCh and
	// blocks on yieldCh; the fiber's trampoline goroutine blocks on
	// resumeCh and sends on yieldCh at every suspension point.
	resumeCh chan resumeMsg
	yieldCh  chan struct{}

	started bool

	// panicVal holds a value recovered from cb, set just before the
	// trampoline's terminal yield and consumed by the Resume call that
	// yield unblocks, so the panic re-raises on the resumer's goroutine
	// instead of the detached trampoline goroutine.
	panicVal any
}

type resumeMsg struct {
	// resumerGoroutineID is the goroutine ID of whichever goroutine called
	// Resume, so the trampoline can inherit that goroutine's scheduler/
	// dispatcher/root tlsState on first start, the Go-native stand-in for
	// the original's thread_local propagation.
	resumerGoroutineID uint64
	resumerTLS         *tlsState
}

// newRootFiber constructs the implicit, stackless fiber representing a
// goroutine's original execution context. It is never Resumed or Reset;
// it exists so GetThis() always returns something and so a root fiber can
// be the symmetric swap partner of Resume/Yield.
func newRootFiber() *Fiber {
	return &Fiber{
		id:     fiberIDCounter.Add(1),
		name:   "root",
		isRoot: true,
		state:  StateRunning,
	}
}

// Create allocates a new Fiber with the given entry callback. stackSize is
// accepted for API fidelity and reported by callers that need it, but is
// not otherwise consulted: the fiber's goroutine stack grows on demand.
// runsInScheduler selects the Yield/Resume swap partner: true targets the
// thread's dispatcher fiber, false targets its root fiber. Initial state
// is READY.
func Create(cb func(), stackSize int, runsInScheduler bool) *Fiber {
	if cb == nil {
		panic("fiber: Create requires a non-nil callback")
	}
	f := &Fiber{
		id:              fiberIDCounter.Add(1),
		runsInScheduler: runsInScheduler,
		cb:              cb,
		state:           StateReady,
		resumeCh:        make(chan resumeMsg),
		yieldCh:         make(chan struct{}),
	}
	return f
}

// GetId returns the fiber's monotonically assigned identifier.
func (f *Fiber) GetId() uint64 {
	return f.id
}

// GetState returns the fiber's current lifecycle state.
func (f *Fiber) GetState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Resume transfers control of the calling goroutine to f. Precondition:
// f is READY and f is not the fiber currently running on this goroutine.
// Violating the precondition is rejected with an error and no state
// change: ErrCannotResumeRoot for a root fiber, ErrFiberRunning when f is
// already current, ErrFiberNotReady when f is not READY. A panic raised
// by f's callback is re-raised here, on the resumer's goroutine.
func (f *Fiber) Resume() error {
	if f.isRoot {
		return ErrCannotResumeRoot
	}

	tls := getTLS()
	if tls.current == f {
		return ErrFiberRunning
	}

	f.mu.Lock()
	if f.state != StateReady {
		f.mu.Unlock()
		return ErrFiberNotReady
	}
	f.state = StateRunning
	started := f.started
	f.started = true
	f.mu.Unlock()

	prev := tls.current
	if prev == nil {
		prev = ensureRoot(tls)
	}
	tls.current = f

	if !started {
		go f.trampoline(tls)
	}

	f.resumeCh <- resumeMsg{resumerGoroutineID: currentGoroutineID(), resumerTLS: tls}
	<-f.yieldCh

	tls.current = prev

	f.mu.Lock()
	p := f.panicVal
	f.panicVal = nil
	f.mu.Unlock()
	if p != nil {
		panic(p)
	}
	return nil
}

// ensureRoot lazily creates the calling goroutine's root fiber, matching
// the spec's "lazily created on first access" thread-local root.
func ensureRoot(tls *tlsState) *Fiber {
	if tls.root == nil {
		tls.root = newRootFiber()
	}
	return tls.root
}

// trampoline is the body of a fiber's dedicated goroutine. It blocks on
// the first handoff, registers its own tlsState inherited from the
// resumer, runs the user callback, then performs the one mandatory
// terminal yield and returns, ending the goroutine: a Reset fiber always
// gets a fresh trampoline goroutine on its next Resume (see Reset), so
// this goroutine's job is done the moment its one cb incarnation reaches
// TERM, and letting it return (rather than parking forever waiting for a
// handoff that will never come) is what keeps one fiber run from leaking
// one goroutine permanently.
func (f *Fiber) trampoline(initialTLS *tlsState) {
	msg := <-f.resumeCh
	myTLS := &tlsState{
		scheduler:         initialTLS.scheduler,
		dispatcher:        initialTLS.dispatcher,
		root:              initialTLS.root,
		current:           f,
		workerThreadID:    initialTLS.workerThreadID,
		hasWorkerThreadID: initialTLS.hasWorkerThreadID,
	}
	_ = msg.resumerGoroutineID
	registerTLS(currentGoroutineID(), myTLS)
	defer releaseTLS()

	func() {
		defer func() {
			f.mu.Lock()
			f.state = StateTerm
			f.mu.Unlock()
			if r := recover(); r != nil {
				// User code owns its own panics. Stash the recovered value
				// for the Resume call this terminal yield unblocks, so it
				// re-raises on the resumer's goroutine instead of aborting
				// this detached one.
				f.mu.Lock()
				f.panicVal = r
				f.mu.Unlock()
			}
			f.terminalYield()
		}()
		f.cb()
	}()
}

// terminalYield performs the trampoline's single mandatory post-completion
// yield. It is distinct from the public Yield: Yield is only meaningful
// on a RUNNING fiber, but the trampoline must still hand control back to
// its resumer after reaching TERM, a transition Yield's public contract
// does not describe.
func (f *Fiber) terminalYield() {
	f.yieldCh <- struct{}{}
}

// Yield suspends the calling fiber, returning control to its Resume
// caller. Per spec, yielding from a fiber that is not RUNNING is a no-op;
// this makes Yield safe to call speculatively.
func (f *Fiber) Yield() {
	f.mu.Lock()
	if f.state != StateRunning {
		f.mu.Unlock()
		return
	}
	f.state = StateReady
	f.mu.Unlock()

	f.yieldCh <- struct{}{}
	<-f.resumeCh
}

// Reset rebuilds f with a new entry callback, returning it to READY.
// Allowed only when f is in TERM; Reset on a live fiber returns
// ErrFiberResetNotTerm and leaves f unchanged.
func (f *Fiber) Reset(cb func()) error {
	if f.isRoot {
		return ErrCannotResetRoot
	}
	if cb == nil {
		panic("fiber: Reset requires a non-nil callback")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateTerm {
		return ErrFiberResetNotTerm
	}
	f.cb = cb
	f.state = StateReady
	f.started = false
	f.resumeCh = make(chan resumeMsg)
	f.yieldCh = make(chan struct{})
	return nil
}

func (f *Fiber) String() string {
	name := f.name
	if name == "" {
		name = fmt.Sprintf("fiber-%d", f.id)
	}
	return fmt.Sprintf("%s[%s]", name, f.GetState())
}

// GetThis returns the fiber currently running on the calling goroutine,
// lazily creating its root fiber if this goroutine has never Resumed one.
func GetThis() *Fiber {
	tls := getTLS()
	if tls.current == nil {
		tls.current = ensureRoot(tls)
	}
	return tls.current
}

// GetFiberId returns GetThis().GetId(), the spec's convenience accessor.
func GetFiberId() uint64 {
	return GetThis().GetId()
}

// CurrentWorkerThreadID returns the identifier of the worker OS thread
// driving the calling fiber's dispatch chain, and whether one is set.
// Unset outside of a Scheduler/IOManager-driven fiber or callback. This
// is the value a Task's thread pin must equal for the task to be
// eligible on this worker.
func CurrentWorkerThreadID() (uint64, bool) {
	tls := getTLS()
	return tls.workerThreadID, tls.hasWorkerThreadID
}
