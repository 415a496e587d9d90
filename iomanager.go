package fiber

import (
	"sync/atomic"
	"unsafe"
)

const (
	// maxPollTimeoutMillis is the idle loop's wait ceiling.
	maxPollTimeoutMillis = 3000
	// defaultFdCapacity is the fd vector's initial size.
	defaultFdCapacity = 32
)

// scheduledWork is what triggerLocked hands back to its caller once an
// EventContext fires: enough to issue one Schedule call without holding
// the FdContext mutex across it, per the locking-hierarchy rule that the
// fd-context mutex must never be held across a call that might contend
// on the scheduler mutex.
type scheduledWork struct {
	scheduler *Scheduler
	fiber     *Fiber
	cb        func()
}

// IOManager specializes Scheduler with an epoll-based readiness
// multiplexer, a self-pipe wakeup mechanism, and an embedded
// TimerManager. It overrides tickle, idle, and stopping.
type IOManager struct {
	*Scheduler

	timers *TimerManager
	fds    *fdVector
	poll   poller

	pipeR, pipeW int
	tickleMarker byte
	tickleTag    uintptr

	pendingEvents atomic.Int32

	logger        Logger
	rateLimiter   pollErrorLimiter
	pollTimeoutMs int64
}

// NewIOManager constructs an IOManager and starts its scheduler. The
// construction order - multiplexer, self-pipe, tickle-fd registration,
// fd-vector sizing, then scheduler start - mirrors the original's
// constructor, since later steps (a worker's idle loop calling the
// multiplexer) depend on earlier ones having already completed.
func NewIOManager(workerCount int, useCaller bool, name string, opts ...SchedulerOption) (*IOManager, error) {
	o := resolveSchedulerOptions(opts)

	sched, err := NewScheduler(workerCount, useCaller, name, opts...)
	if err != nil {
		return nil, err
	}

	pl, err := newPoller()
	if err != nil {
		return nil, err
	}

	pipeR, pipeW, err := newSelfPipe()
	if err != nil {
		_ = pl.Close()
		return nil, err
	}

	m := &IOManager{
		Scheduler:     sched,
		fds:           newFdVector(defaultFdCapacity),
		poll:          pl,
		pipeR:         pipeR,
		pipeW:         pipeW,
		logger:        o.logger,
		rateLimiter:   o.rateLimiter,
		pollTimeoutMs: o.pollTimeout,
	}
	m.timers = NewTimerManager(m)
	m.timers.logger = m.logger
	m.tickleTag = uintptr(unsafe.Pointer(&m.tickleMarker))

	if err := pl.Add(pipeR, pollerRead, m.tickleTag); err != nil {
		_ = pl.Close()
		_ = closeFD(pipeR)
		_ = closeFD(pipeW)
		return nil, err
	}

	sched.self = m

	if err := sched.Start(); err != nil {
		_ = pl.Close()
		_ = closeFD(pipeR)
		_ = closeFD(pipeW)
		return nil, err
	}

	return m, nil
}

// Stop stops the underlying scheduler, then tears down the multiplexer
// and self-pipe.
func (m *IOManager) Stop() error {
	if err := m.Scheduler.Stop(); err != nil {
		return err
	}
	if err := m.poll.Close(); err != nil {
		logError(m.logger, "poll", "failed to close multiplexer", err, nil)
	}
	if err := closeFD(m.pipeR); err != nil {
		logError(m.logger, "poll", "failed to close self-pipe read end", err, nil)
	}
	if err := closeFD(m.pipeW); err != nil {
		logError(m.logger, "poll", "failed to close self-pipe write end", err, nil)
	}
	return nil
}

// AddTimer is the inherited TimerManager call, exposed directly on
// IOManager per the spec's API surface.
func (m *IOManager) AddTimer(ms int64, cb func(), recurring bool) *Timer {
	return m.timers.AddTimer(ms, cb, recurring)
}

// AddConditionTimer is the inherited TimerManager call.
func (m *IOManager) AddConditionTimer(ms int64, cb func(), cond *struct{}, recurring bool) *Timer {
	return m.timers.AddConditionTimer(ms, cb, cond, recurring)
}

// AddEvent registers cb (or, if nil, the calling fiber) to be woken when
// event becomes ready on fd. Rejects a duplicate registration of the
// same event on the same fd without side effects.
func (m *IOManager) AddEvent(fd int, event pollerEvents, cb func()) error {
	ctx, err := m.fds.ensure(fd)
	if err != nil {
		return err
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.mask&event != 0 {
		logDebug(m.logger, "poll", "duplicate event registration rejected",
			map[string]any{"fd": fd, "event": event})
		return ErrEventAlreadyRegistered
	}

	newMask := ctx.mask | event
	if ctx.mask == 0 {
		err = m.poll.Add(fd, newMask, ctx.tag())
	} else {
		err = m.poll.Modify(fd, newMask, ctx.tag())
	}
	if err != nil {
		return err
	}

	ec := ctx.contextFor(event)
	ec.scheduler = m.Scheduler
	if cb != nil {
		ec.cb = cb
	} else {
		ec.fiber = GetThis()
	}
	ctx.mask = newMask
	m.pendingEvents.Add(1)
	return nil
}

// DelEvent removes the registration for event on fd without firing it.
// A no-op if the event was not registered.
func (m *IOManager) DelEvent(fd int, event pollerEvents) error {
	ctx := m.fds.lookup(fd)
	if ctx == nil {
		return nil
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.mask&event == 0 {
		return nil
	}

	ctx.contextFor(event).clear()
	ctx.mask &^= event
	m.pendingEvents.Add(-1)

	if ctx.mask == 0 {
		return m.poll.Delete(fd)
	}
	return m.poll.Modify(fd, ctx.mask, ctx.tag())
}

// CancelEvent is DelEvent, but delivers one wake to the registered
// waiter first, so it can observe the cancellation.
func (m *IOManager) CancelEvent(fd int, event pollerEvents) error {
	ctx := m.fds.lookup(fd)
	if ctx == nil {
		return nil
	}

	ctx.mu.Lock()
	w, fired := m.triggerLocked(ctx, event)
	mask := ctx.mask
	ctx.mu.Unlock()

	if !fired {
		return nil
	}
	m.dispatch(w)

	if mask == 0 {
		return m.poll.Delete(fd)
	}
	return m.poll.Modify(fd, mask, ctx.tag())
}

// CancelAll removes fd from the multiplexer entirely, waking every
// currently registered waiter first.
func (m *IOManager) CancelAll(fd int) error {
	ctx := m.fds.lookup(fd)
	if ctx == nil {
		return nil
	}

	ctx.mu.Lock()
	var work []scheduledWork
	for _, ev := range [...]pollerEvents{pollerRead, pollerWrite, pollerError} {
		if w, fired := m.triggerLocked(ctx, ev); fired {
			work = append(work, w)
		}
	}
	ctx.mask = 0
	ctx.mu.Unlock()

	for _, w := range work {
		m.dispatch(w)
	}
	return m.poll.Delete(fd)
}

// triggerLocked clears event's EventContext and mask bit, decrements the
// pending count, and returns what to schedule. Caller must hold ctx.mu
// and must release it before calling dispatch on the result.
func (m *IOManager) triggerLocked(ctx *fdContext, event pollerEvents) (scheduledWork, bool) {
	ec := ctx.contextFor(event)
	if !ec.isSet() {
		return scheduledWork{}, false
	}
	w := scheduledWork{scheduler: ec.scheduler, fiber: ec.fiber, cb: ec.cb}
	ec.clear()
	ctx.mask &^= event
	m.pendingEvents.Add(-1)
	return w, true
}

func (m *IOManager) dispatch(w scheduledWork) {
	sched := w.scheduler
	if sched == nil {
		sched = m.Scheduler
	}
	switch {
	case w.fiber != nil:
		_ = sched.ScheduleFiber(w.fiber, anyThread)
	case w.cb != nil:
		_ = sched.ScheduleCallback(w.cb, anyThread)
	}
}

// tickle writes a single byte to the self-pipe iff at least one worker
// is currently idle.
func (m *IOManager) tickle() {
	if !m.hasIdleThreads() {
		return
	}
	_ = writeWakeByte(m.pipeW)
}

// onTimerInsertedAtFront forwards to tickle, per spec.
func (m *IOManager) onTimerInsertedAtFront() {
	m.tickle()
}

// stopping overrides the base condition: also requires no pending I/O
// events and that the nearest timer deadline is zero or the set is
// empty.
func (m *IOManager) stopping() bool {
	if !m.Scheduler.stopping() {
		return false
	}
	if m.pendingEvents.Load() != 0 {
		return false
	}
	ms, ok := m.timers.PeekNextTimer()
	return !ok || ms == 0
}

func (m *IOManager) idleFunc() func() { return m.idleLoopBody }

// idleLoopBody is the sole blocking point in the system, run on the idle
// fiber of each worker.
func (m *IOManager) idleLoopBody() {
	var expired []func()
	for {
		if m.stopping() {
			return
		}

		timeoutMs, ok := m.timers.GetNextTimer()
		if !ok {
			timeoutMs = m.pollTimeoutMs
		}
		if timeoutMs > m.pollTimeoutMs {
			timeoutMs = m.pollTimeoutMs
		}
		if timeoutMs < 0 {
			timeoutMs = 0
		}

		events, err := m.poll.Wait(int(timeoutMs))
		if err != nil {
			if m.rateLimiter.allow(err.Error()) {
				logWarn(m.logger, "poll", "multiplexer wait failed", err, nil)
			}
			GetThis().Yield()
			continue
		}

		expired = m.timers.ListExpiredCb(expired[:0])
		for _, cb := range expired {
			if err := m.ScheduleCallback(cb, anyThread); err != nil {
				logWarn(m.logger, "timer", "failed to schedule expired timer callback", err, nil)
			}
		}

		for _, ev := range events {
			if ev.tag == m.tickleTag {
				drainPipe(m.pipeR)
				continue
			}
			m.handleReadiness(fdContextFromTag(ev.tag), ev.events)
		}

		GetThis().Yield()
	}
}

// handleReadiness converts native readiness bits to {READ, WRITE},
// widening with the fd's full registered mask on error/hangup so a stuck
// waiter is still woken, intersects with what's actually registered, and
// fires every bit in that intersection.
func (m *IOManager) handleReadiness(ctx *fdContext, bits pollerEvents) {
	ctx.mu.Lock()

	if bits&(pollerError|pollerHangup) != 0 {
		bits |= ctx.mask
	}
	fire := bits & ctx.mask & (pollerRead | pollerWrite)

	var work []scheduledWork
	if fire&pollerRead != 0 {
		if w, fired := m.triggerLocked(ctx, pollerRead); fired {
			work = append(work, w)
		}
	}
	if fire&pollerWrite != 0 {
		if w, fired := m.triggerLocked(ctx, pollerWrite); fired {
			work = append(work, w)
		}
	}
	remaining := ctx.mask
	fd := ctx.fd
	tag := ctx.tag()
	ctx.mu.Unlock()

	for _, w := range work {
		m.dispatch(w)
	}

	if remaining == 0 {
		_ = m.poll.Delete(fd)
	} else {
		_ = m.poll.Modify(fd, remaining, tag)
	}
}
