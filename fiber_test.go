package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiberPingPong(t *testing.T) {
	var log []string

	f := Create(func() {
		log = append(log, "A")
		GetThis().Yield()
		log = append(log, "B")
	}, DefaultStackSize, false)

	require.Equal(t, StateReady, f.GetState())

	require.NoError(t, f.Resume())
	assert.Equal(t, []string{"A"}, log)
	assert.Equal(t, StateReady, f.GetState())

	require.NoError(t, f.Resume())
	assert.Equal(t, []string{"A", "B"}, log)
	assert.Equal(t, StateTerm, f.GetState())
}

func TestFiberResumeNotReady(t *testing.T) {
	f := Create(func() {}, DefaultStackSize, false)
	require.NoError(t, f.Resume())
	require.Equal(t, StateTerm, f.GetState())

	err := f.Resume()
	assert.ErrorIs(t, err, ErrFiberNotReady)
}

func TestFiberYieldNoopWhenNotRunning(t *testing.T) {
	f := Create(func() {}, DefaultStackSize, false)
	// Yield on a READY fiber (never started) must be a no-op, not a panic.
	f.Yield()
	assert.Equal(t, StateReady, f.GetState())
}

func TestFiberReset(t *testing.T) {
	var calls int
	f := Create(func() { calls++ }, DefaultStackSize, false)
	require.NoError(t, f.Resume())
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateTerm, f.GetState())

	require.NoError(t, f.Reset(func() { calls++ }))
	assert.Equal(t, StateReady, f.GetState())

	require.NoError(t, f.Resume())
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateTerm, f.GetState())
}

func TestFiberResetRequiresTerm(t *testing.T) {
	f := Create(func() {
		GetThis().Yield()
	}, DefaultStackSize, false)
	require.NoError(t, f.Resume())
	assert.Equal(t, StateReady, f.GetState())

	err := f.Reset(func() {})
	assert.ErrorIs(t, err, ErrFiberResetNotTerm)
}

func TestFiberMultipleYields(t *testing.T) {
	var log []string
	f := Create(func() {
		for i := 0; i < 3; i++ {
			log = append(log, "step")
			GetThis().Yield()
		}
		log = append(log, "done")
	}, DefaultStackSize, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.Resume())
	}
	require.NoError(t, f.Resume())
	assert.Equal(t, []string{"step", "step", "step", "done"}, log)
	assert.Equal(t, StateTerm, f.GetState())
}

func TestFiberPanicPropagates(t *testing.T) {
	f := Create(func() {
		panic("boom")
	}, DefaultStackSize, false)

	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		_ = f.Resume()
	}()

	select {
	case r := <-done:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for panic propagation")
	}
}

func TestGetThisLazyRoot(t *testing.T) {
	done := make(chan *Fiber, 1)
	go func() {
		done <- GetThis()
	}()
	root := <-done
	assert.Equal(t, StateRunning, root.GetState())
}

func TestCannotResumeRunningFiber(t *testing.T) {
	inner := make(chan error, 1)
	f := Create(func() {
		self := GetThis()
		inner <- self.Resume()
	}, DefaultStackSize, false)
	require.NoError(t, f.Resume())
	assert.ErrorIs(t, <-inner, ErrFiberRunning)
}
