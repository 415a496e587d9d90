package fiber

import (
	"sort"
	"sync"
	"weak"
)

var timerIDCounter uint64

func nextTimerID() uint64 {
	timerIDCounter++
	return timerIDCounter
}

// Timer is a handle to a pending entry in a TimerManager. The zero value
// is not usable; obtain one from TimerManager.AddTimer or
// AddConditionTimer.
type Timer struct {
	id       uint64
	mgr      *TimerManager
	periodMs int64
	deadline int64
	cb       func()
	recur    bool
	cond     weak.Pointer[struct{}]
	hasCond  bool
}

func (t *Timer) less(o *Timer) bool {
	if t.deadline != o.deadline {
		return t.deadline < o.deadline
	}
	return t.id < o.id
}

// Cancel removes the timer from its manager. Returns false if the timer
// had already fired or been cancelled.
func (t *Timer) Cancel() bool {
	return t.mgr.cancel(t)
}

// Refresh re-inserts the timer with a deadline of now+period. Returns
// false if the timer was not pending.
func (t *Timer) Refresh() bool {
	return t.mgr.refresh(t)
}

// Reset changes the timer's period and re-inserts it, computing the new
// deadline from now (fromNow=true) or from the timer's original
// insertion basis (fromNow=false). Returns false if the timer was not
// pending.
func (t *Timer) Reset(periodMs int64, fromNow bool) bool {
	return t.mgr.reset(t, periodMs, fromNow)
}

// timerInsertedAtFrontHook is implemented by a TimerManager's host (IOManager)
// to react when a new timer becomes the soonest deadline.
type timerInsertedAtFrontHook interface {
	onTimerInsertedAtFront()
}

type noOpFrontHook struct{}

func (noOpFrontHook) onTimerInsertedAtFront() {}

// TimerManager owns an ordered set of pending timers sorted by ascending
// deadline, ties broken by insertion identity so the ordering is a strict
// total order.
type TimerManager struct {
	mu        sync.RWMutex
	timers    []*Timer
	lastNow   int64
	tickled   bool
	frontHook timerInsertedAtFrontHook
	logger    Logger
}

// NewTimerManager constructs an empty TimerManager. hook may be nil, in
// which case front-of-queue insertions are simply not reported.
func NewTimerManager(hook timerInsertedAtFrontHook) *TimerManager {
	if hook == nil {
		hook = noOpFrontHook{}
	}
	return &TimerManager{
		lastNow:   nowMillis(),
		frontHook: hook,
		logger:    NewNoOpLogger(),
	}
}

// AddTimer inserts a new timer firing after ms milliseconds, optionally
// recurring.
func (m *TimerManager) AddTimer(ms int64, cb func(), recurring bool) *Timer {
	t := &Timer{
		id:       nextTimerID(),
		mgr:      m,
		periodMs: ms,
		deadline: nowMillis() + ms,
		cb:       cb,
		recur:    recurring,
	}
	m.mu.Lock()
	m.insertLocked(t)
	m.mu.Unlock()
	return t
}

// AddConditionTimer is identical to AddTimer, except at fire time the
// callback only runs if the weak reference to cond can still be
// upgraded; otherwise the firing is silently dropped.
func (m *TimerManager) AddConditionTimer(ms int64, cb func(), cond *struct{}, recurring bool) *Timer {
	t := &Timer{
		id:       nextTimerID(),
		mgr:      m,
		periodMs: ms,
		deadline: nowMillis() + ms,
		cb:       cb,
		recur:    recurring,
		cond:     weak.Make(cond),
		hasCond:  true,
	}
	m.mu.Lock()
	m.insertLocked(t)
	m.mu.Unlock()
	return t
}

// insertLocked inserts t into the ordered set; caller must hold mu for
// writing. Mirrors the original's private addTimer(val, lock) overload
// used by AddConditionTimer to avoid a second lock acquisition.
func (m *TimerManager) insertLocked(t *Timer) {
	i := sort.Search(len(m.timers), func(i int) bool {
		return t.less(m.timers[i])
	})
	m.timers = append(m.timers, nil)
	copy(m.timers[i+1:], m.timers[i:])
	m.timers[i] = t

	if i == 0 && !m.tickled {
		m.tickled = true
		m.frontHook.onTimerInsertedAtFront()
	}
}

// GetNextTimer returns milliseconds until the front timer's deadline (0
// if already expired), and ok=false if the set is empty. Clears the
// tickled flag.
func (m *TimerManager) GetNextTimer() (ms int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickled = false
	if len(m.timers) == 0 {
		return 0, false
	}
	d := m.timers[0].deadline - nowMillis()
	if d < 0 {
		d = 0
	}
	return d, true
}

// ListExpiredCb appends every expired timer's callback to out (which it
// returns, growing as needed), re-inserting recurring timers with a fresh
// deadline. Clock rollover (now observed strictly less than the
// previously observed time by at least the rollover threshold) harvests
// every pending timer regardless of deadline.
func (m *TimerManager) ListExpiredCb(out []func()) []func() {
	now := nowMillis()

	m.mu.Lock()
	rollover := now <= m.lastNow-rolloverThresholdMillis
	previousNow := m.lastNow
	m.lastNow = now

	var expired []*Timer
	if rollover {
		expired = m.timers
		m.timers = nil
	} else {
		i := 0
		for i < len(m.timers) && m.timers[i].deadline <= now {
			i++
		}
		expired = m.timers[:i:i]
		m.timers = append([]*Timer(nil), m.timers[i:]...)
	}

	var reinsert []*Timer
	for _, t := range expired {
		if t.recur {
			t.deadline = now + t.periodMs
			reinsert = append(reinsert, t)
		}
	}
	for _, t := range reinsert {
		m.insertLocked(t)
	}
	m.mu.Unlock()

	if rollover {
		logWarn(m.logger, "timer", "clock rollover detected, harvesting all pending timers", nil,
			map[string]any{"previous_now_ms": previousNow, "now_ms": now, "harvested": len(expired)})
	}

	for _, t := range expired {
		if t.hasCond {
			if t.cond.Value() == nil {
				continue
			}
		}
		out = append(out, t.cb)
	}
	return out
}

// PeekNextTimer is GetNextTimer without the side effect of clearing the
// tickled flag; used by stopping-condition checks that must not consume
// a pending front-of-queue notification.
func (m *TimerManager) PeekNextTimer() (ms int64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.timers) == 0 {
		return 0, false
	}
	d := m.timers[0].deadline - nowMillis()
	if d < 0 {
		d = 0
	}
	return d, true
}

// HasTimer reports whether any timer is pending.
func (m *TimerManager) HasTimer() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.timers) > 0
}

func (m *TimerManager) indexOfLocked(t *Timer) int {
	for i, c := range m.timers {
		if c == t {
			return i
		}
	}
	return -1
}

func (m *TimerManager) removeLocked(t *Timer) bool {
	i := m.indexOfLocked(t)
	if i < 0 {
		return false
	}
	m.timers = append(m.timers[:i], m.timers[i+1:]...)
	return true
}

func (m *TimerManager) cancel(t *Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(t)
}

func (m *TimerManager) refresh(t *Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(t) {
		return false
	}
	t.deadline = nowMillis() + t.periodMs
	m.insertLocked(t)
	return true
}

func (m *TimerManager) reset(t *Timer, periodMs int64, fromNow bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(t) {
		return false
	}
	base := t.deadline - t.periodMs
	if fromNow {
		base = nowMillis()
	}
	t.periodMs = periodMs
	t.deadline = base + periodMs
	m.insertLocked(t)
	return true
}
