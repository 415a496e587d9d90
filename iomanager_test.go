//go:build linux

package fiber

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIOManagerTimerCancelsSelf(t *testing.T) {
	m, err := NewIOManager(2, false, "timer-test")
	require.NoError(t, err)
	defer m.Stop()

	var count atomic.Int32
	var timer *Timer
	done := make(chan struct{})

	timer = m.AddTimer(30, func() {
		n := count.Add(1)
		if n == 3 {
			timer.Cancel()
			close(done)
		}
	}, true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire three times")
	}

	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 3, count.Load(), "no further fires after self-cancellation")
}

func TestIOManagerWriteReadiness(t *testing.T) {
	m, err := NewIOManager(2, false, "write-ready-test")
	require.NoError(t, err)
	defer m.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	require.NoError(t, m.AddEvent(int(w.Fd()), pollerWrite, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write readiness callback never ran")
	}

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, m.pendingEvents.Load())
}

func TestIOManagerDuplicateAddRejected(t *testing.T) {
	m, err := NewIOManager(1, false, "dup-test")
	require.NoError(t, err)
	defer m.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	var first, second atomic.Int32
	require.NoError(t, m.AddEvent(fd, pollerRead, func() { first.Add(1) }))

	err = m.AddEvent(fd, pollerRead, func() { second.Add(1) })
	assert.ErrorIs(t, err, ErrEventAlreadyRegistered)
	assert.EqualValues(t, 1, m.pendingEvents.Load())

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return first.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 0, second.Load())
}

func TestIOManagerCancelWakesWaiter(t *testing.T) {
	m, err := NewIOManager(2, false, "cancel-test")
	require.NoError(t, err)
	defer m.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	var resumed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	require.NoError(t, m.ScheduleCallback(func() {
		require.NoError(t, m.AddEvent(fd, pollerRead, nil))
		GetThis().Yield()
		resumed.Add(1)
		wg.Done()
	}, anyThread))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.CancelEvent(fd, pollerRead))

	waitOrTimeout(t, &wg, 2*time.Second)
	assert.EqualValues(t, 1, resumed.Load())
}

func TestIOManagerDelEventRoundTrip(t *testing.T) {
	m, err := NewIOManager(1, false, "roundtrip-test")
	require.NoError(t, err)
	defer m.Stop()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd := int(r.Fd())
	require.NoError(t, m.AddEvent(fd, pollerRead, func() {}))
	require.NoError(t, m.DelEvent(fd, pollerRead))

	ctx := m.fds.lookup(fd)
	require.NotNil(t, ctx)
	assert.EqualValues(t, 0, ctx.mask)
	assert.EqualValues(t, 0, m.pendingEvents.Load())
}
