package fiber

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerPinning(t *testing.T) {
	s, err := NewScheduler(2, false, "pin-test")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	// Discover one worker's real thread id by asking it to report its own
	// goroutine id, then pin every subsequent task to exactly that worker.
	idCh := make(chan int64, 1)
	require.NoError(t, s.ScheduleCallback(func() {
		id, ok := CurrentWorkerThreadID()
		require.True(t, ok)
		idCh <- int64(id)
	}, anyThread))
	pin := <-idCh

	var mu sync.Mutex
	var order []int
	var threadIDs []int64
	var done sync.WaitGroup
	done.Add(3)

	for i := 0; i < 3; i++ {
		n := i
		require.NoError(t, s.ScheduleCallback(func() {
			id, ok := CurrentWorkerThreadID()
			require.True(t, ok)
			mu.Lock()
			order = append(order, n)
			threadIDs = append(threadIDs, int64(id))
			mu.Unlock()
			done.Done()
		}, pin))
	}

	waitOrTimeout(t, &done, 2*time.Second)
	require.NoError(t, s.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
	for _, id := range threadIDs {
		assert.Equal(t, pin, id, "every pinned task must run on the pinned worker")
	}
}

func TestSchedulerRunsCallback(t *testing.T) {
	s, err := NewScheduler(1, false, "cb-test")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	done := make(chan struct{})
	require.NoError(t, s.ScheduleCallback(func() { close(done) }, anyThread))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	require.NoError(t, s.Stop())
}

func TestSchedulerUseCaller(t *testing.T) {
	s, err := NewScheduler(1, true, "caller-test")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	var ran bool
	require.NoError(t, s.ScheduleCallback(func() { ran = true }, anyThread))

	require.NoError(t, s.Stop())
	assert.True(t, ran)
}

func TestSchedulerStopJoinsWorkers(t *testing.T) {
	s, err := NewScheduler(3, false, "join-test")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	assert.True(t, s.stopping())
}

func TestSchedulerRejectsAfterStop(t *testing.T) {
	s, err := NewScheduler(1, false, "rejects-test")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	err = s.ScheduleCallback(func() {}, anyThread)
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for work to complete")
	}
}
