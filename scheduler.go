package fiber

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// schedulerHooks is the small capability set a Scheduler's host overrides
// to specialise notification, blocking, and termination behavior. Go has
// no implementation inheritance, so the base Scheduler plays this role
// for itself by default, and IOManager substitutes itself in by
// implementing the same interface and reassigning the self field at
// construction - the composition approach the design notes call for in
// place of virtual methods.
type schedulerHooks interface {
	tickle()
	idleFunc() func()
	stopping() bool
}

// Scheduler multiplexes fibers and callbacks across N worker threads
// using a single shared FIFO task queue, with no stealing, no priority
// classes, and no fairness beyond FIFO.
type Scheduler struct {
	name        string
	workerCount int
	useCaller   bool
	logger      Logger

	self schedulerHooks

	mu           sync.Mutex
	queue        []task
	threads      []*Thread
	started      bool
	stoppingFlag bool

	callerThreadID   uint64
	callerDispatcher *Fiber

	activeCount atomic.Int32
	idleCount   atomic.Int32

	wg sync.WaitGroup
}

// NewScheduler constructs a Scheduler with workerCount worker threads
// (>=1). When useCaller is true, the goroutine that calls Start
// participates as an additional worker: one worker slot is consumed, and
// Start builds a root dispatcher fiber for that goroutine so its stop
// sequence can drive the remaining loop iterations without a dedicated OS
// thread. NewScheduler itself records no caller; the caller is bound only
// by Start.
func NewScheduler(workerCount int, useCaller bool, name string, opts ...SchedulerOption) (*Scheduler, error) {
	if workerCount < 1 {
		return nil, fmt.Errorf("fiber: worker count must be >= 1, got %d", workerCount)
	}
	o := resolveSchedulerOptions(opts)
	s := &Scheduler{
		name:        name,
		workerCount: workerCount,
		useCaller:   useCaller,
		logger:      o.logger,
	}
	s.self = s
	return s, nil
}

func (s *Scheduler) tickle()          {}
func (s *Scheduler) idleFunc() func() { return s.baseIdle }

func (s *Scheduler) baseIdle() {
	for !s.self.stopping() {
		GetThis().Yield()
	}
}

func (s *Scheduler) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stoppingFlag && len(s.queue) == 0 && s.activeCount.Load() == 0
}

// hasIdleThreads reports whether at least one worker is currently
// blocked in its idle fiber; tickle implementations read this to elide
// unnecessary wakeups.
func (s *Scheduler) hasIdleThreads() bool {
	return s.idleCount.Load() > 0
}

// Schedule pushes a fiber or callback task onto the queue. If the queue
// was empty prior to insertion, the host's tickle hook is invoked. May be
// called from any thread and from any fiber.
func (s *Scheduler) Schedule(t task) error {
	s.mu.Lock()
	if s.stoppingFlag {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	wasEmpty := len(s.queue) == 0
	s.queue = append(s.queue, t)
	s.mu.Unlock()

	if wasEmpty {
		s.self.tickle()
	}
	return nil
}

// ScheduleFiber is the common-case convenience wrapper over Schedule.
func (s *Scheduler) ScheduleFiber(f *Fiber, pin int64) error {
	return s.Schedule(fiberTask(f, pin))
}

// ScheduleCallback is the common-case convenience wrapper over Schedule.
func (s *Scheduler) ScheduleCallback(cb func(), pin int64) error {
	return s.Schedule(callbackTask(cb, pin))
}

// Start spawns worker threads. Idempotent once the scheduler is running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.started = true
	n := s.workerCount
	if s.useCaller {
		n--
		s.callerThreadID = currentGoroutineID()
		s.callerDispatcher = Create(func() { s.runLoop(s.callerThreadID) }, DefaultStackSize, false)
		tls := getTLS()
		tls.scheduler = s
		tls.dispatcher = s.callerDispatcher
	}
	s.mu.Unlock()

	logDebug(s.logger, "scheduler", "starting workers",
		map[string]any{"scheduler": s.name, "worker_count": s.workerCount, "use_caller": s.useCaller})

	for i := 0; i < n; i++ {
		s.wg.Add(1)
		idx := i
		th := NewThread(fmt.Sprintf("%s-%d", s.name, idx), func() {
			defer s.wg.Done()
			tls := getTLS()
			tls.scheduler = s
			tls.root = ensureRoot(tls)
			tls.dispatcher = tls.root
			s.runLoop(currentGoroutineID())
			releaseTLS()
		})
		s.mu.Lock()
		s.threads = append(s.threads, th)
		s.mu.Unlock()
	}
	return nil
}

// Stop sets the stopping flag, tickles every worker (plus the caller
// dispatcher, if any), resumes the caller dispatcher fiber to drain
// remaining work, and joins all workers. When useCaller is set, only the
// caller thread may call Stop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.useCaller && currentGoroutineID() != s.callerThreadID {
		s.mu.Unlock()
		return ErrNotCallerThread
	}
	s.stoppingFlag = true
	threads := append([]*Thread(nil), s.threads...)
	dispatcher := s.callerDispatcher
	s.mu.Unlock()

	logDebug(s.logger, "scheduler", "stopping workers", map[string]any{"scheduler": s.name})

	for range threads {
		s.self.tickle()
	}
	if dispatcher != nil {
		s.self.tickle()
		if dispatcher.GetState() == StateReady {
			_ = dispatcher.Resume()
		}
	}

	for _, th := range threads {
		th.Join()
	}
	s.wg.Wait()
	return nil
}

// runLoop is the per-worker cooperative loop body, executed directly on
// the worker's root fiber (spawned workers) or the pre-built caller
// dispatcher fiber (the use_caller thread).
func (s *Scheduler) runLoop(threadID uint64) {
	tls := getTLS()
	tls.workerThreadID = threadID
	tls.hasWorkerThreadID = true

	idleFiber := Create(s.self.idleFunc(), DefaultStackSize, true)
	var callbackFiber *Fiber

	for {
		s.mu.Lock()
		var (
			t        task
			found    bool
			tickleMe bool
		)
		for i, candidate := range s.queue {
			if !candidate.matchesThread(threadID) {
				tickleMe = true
				continue
			}
			if candidate.fiber != nil && candidate.fiber.GetState() == StateRunning {
				continue
			}
			t = candidate
			found = true
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			break
		}
		if found {
			s.activeCount.Add(1)
		}
		s.mu.Unlock()

		if tickleMe {
			s.self.tickle()
		}

		if !found {
			if idleFiber.GetState() == StateTerm {
				return
			}
			s.idleCount.Add(1)
			_ = idleFiber.Resume()
			s.idleCount.Add(-1)
			continue
		}

		switch {
		case t.fiber != nil:
			if t.fiber.GetState() != StateTerm {
				if err := t.fiber.Resume(); err != nil {
					logWarn(s.logger, "scheduler", "failed to resume scheduled fiber", err, map[string]any{"fiber": t.fiber.GetId()})
				}
			}
			s.activeCount.Add(-1)
			if t.fiber.GetState() == StateReady {
				_ = s.ScheduleFiber(t.fiber, t.pin)
			}

		case t.cb != nil:
			if callbackFiber == nil {
				callbackFiber = Create(t.cb, DefaultStackSize, true)
			} else if err := callbackFiber.Reset(t.cb); err != nil {
				logWarn(s.logger, "scheduler", "failed to reset callback fiber", err, nil)
				callbackFiber = Create(t.cb, DefaultStackSize, true)
			}
			_ = callbackFiber.Resume()
			s.activeCount.Add(-1)
		}
	}
}

// GetThis returns the fiber currently running on the calling goroutine;
// a thin re-export for API symmetry with the package-level function, kept
// on Scheduler because application code frequently already has one in
// hand.
func (s *Scheduler) GetThis() *Fiber {
	return GetThis()
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("scheduler(%s)", s.name)
}
