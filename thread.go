package fiber

import (
	"fmt"
	"runtime"
)

// maxThreadNameLen mirrors the OS-level 15-character thread name limit
// named in the external interfaces section; names are truncated to fit.
const maxThreadNameLen = 15

// Thread is a thin wrapper over a goroutine locked to its OS thread via
// runtime.LockOSThread, carrying a name and the identifier recovered from
// that goroutine once it has started. The constructor blocks until the
// new goroutine has recorded its identifier, so GetId is valid
// immediately after NewThread returns.
type Thread struct {
	name string
	id   uint64

	startCh chan struct{}
	doneCh  chan struct{}
}

// NewThread starts fn on a new, OS-thread-locked goroutine and blocks
// until fn's goroutine has recorded its identifier and name.
func NewThread(name string, fn func()) *Thread {
	if len(name) > maxThreadNameLen {
		name = name[:maxThreadNameLen]
	}
	th := &Thread{
		name:    name,
		startCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(th.doneCh)

		th.id = currentGoroutineID()
		close(th.startCh)

		fn()
	}()

	<-th.startCh
	return th
}

// GetId returns the identifier recorded by this thread's goroutine at
// startup.
func (t *Thread) GetId() uint64 {
	return t.id
}

// GetName returns the thread's (possibly truncated) name.
func (t *Thread) GetName() string {
	return t.name
}

// Join blocks until fn has returned.
func (t *Thread) Join() {
	<-t.doneCh
}

func (t *Thread) String() string {
	return fmt.Sprintf("thread(%s:%d)", t.name, t.id)
}
