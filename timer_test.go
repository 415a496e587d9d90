package fiber

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFireOrder(t *testing.T) {
	m := NewTimerManager(nil)
	var order []int
	var mu sync.Mutex

	m.AddTimer(30, func() { mu.Lock(); order = append(order, 3); mu.Unlock() }, false)
	m.AddTimer(10, func() { mu.Lock(); order = append(order, 1); mu.Unlock() }, false)
	m.AddTimer(20, func() { mu.Lock(); order = append(order, 2); mu.Unlock() }, false)

	time.Sleep(40 * time.Millisecond)
	cbs := m.ListExpiredCb(nil)
	require.Len(t, cbs, 3)
	for _, cb := range cbs {
		cb()
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestTimerRecurring(t *testing.T) {
	m := NewTimerManager(nil)
	var fires int
	m.AddTimer(5, func() { fires++ }, true)

	time.Sleep(10 * time.Millisecond)
	cbs := m.ListExpiredCb(nil)
	for _, cb := range cbs {
		cb()
	}
	assert.Equal(t, 1, fires)
	assert.True(t, m.HasTimer())
}

func TestTimerCancelIdempotent(t *testing.T) {
	m := NewTimerManager(nil)
	timer := m.AddTimer(1000, func() {}, false)
	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel())
}

func TestTimerRefresh(t *testing.T) {
	m := NewTimerManager(nil)
	timer := m.AddTimer(10, func() {}, false)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, timer.Refresh())

	ms, ok := m.GetNextTimer()
	require.True(t, ok)
	assert.Greater(t, ms, int64(0))
}

func TestTimerRollover(t *testing.T) {
	m := NewTimerManager(nil)
	m.AddTimer(1_000_000, func() {}, false)
	m.AddTimer(2_000_000, func() {}, false)

	m.lastNow = nowMillis() + rolloverThresholdMillis + 1000

	cbs := m.ListExpiredCb(nil)
	assert.Len(t, cbs, 2)
	assert.False(t, m.HasTimer())
}

func TestConditionTimerFiresWhileCondAlive(t *testing.T) {
	m := NewTimerManager(nil)
	fired := false
	cond := new(struct{})
	m.AddConditionTimer(5, func() { fired = true }, cond, false)

	time.Sleep(10 * time.Millisecond)
	runtime.GC()
	cbs := m.ListExpiredCb(nil)
	for _, cb := range cbs {
		cb()
	}
	assert.True(t, fired, "cond is kept alive by this test's own local variable")
}

func TestOnTimerInsertedAtFront(t *testing.T) {
	var calls int
	m := NewTimerManager(frontHookFunc(func() { calls++ }))
	m.AddTimer(100, func() {}, false)
	assert.Equal(t, 1, calls)

	m.AddTimer(200, func() {}, false)
	assert.Equal(t, 1, calls, "inserting behind the front must not re-trigger the hook")

	_, _ = m.GetNextTimer()
	m.AddTimer(10, func() {}, false)
	assert.Equal(t, 2, calls, "a new front timer re-triggers the hook after GetNextTimer clears tickled")
}

type frontHookFunc func()

func (f frontHookFunc) onTimerInsertedAtFront() { f() }
