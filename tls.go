package fiber

import (
	"runtime"
	"sync"
)

// tlsState is the thread-local state described by the data model: the
// fiber currently running on this goroutine, the goroutine's lazily
// created root fiber, the Scheduler it serves (if any), and that
// Scheduler's dispatcher fiber.
//
// Go goroutines aren't threads, but within this package a goroutine plays
// the same role a thread plays in the original design: at most one fiber
// "belongs" to it at a time, handed off via Resume/Yield, so keying this
// state by goroutine ID gives the same single-owner semantics thread_local
// gave the original.
type tlsState struct {
	current    *Fiber
	root       *Fiber
	scheduler  *Scheduler
	dispatcher *Fiber

	// workerThreadID/hasWorkerThreadID identify the worker OS thread
	// driving the current dispatch chain, propagated down through every
	// fiber a worker resumes (directly or transitively) so scheduled code
	// can discover which worker it is running on - the thread_id a Task
	// pin must target for CurrentWorkerThreadID's caller to be selected
	// again.
	workerThreadID    uint64
	hasWorkerThreadID bool
}

var (
	tlsMu sync.RWMutex
	tlsM  = map[uint64]*tlsState{}
)

// currentGoroutineID parses the "goroutine N [running]:" header of a
// minimal stack dump to recover an identifier unique to the calling
// goroutine. Go offers no supported API for this; it is the same trick
// used throughout the ecosystem (gls, net/http/httptest, etc.) wherever a
// goroutine-scoped handle is unavoidable.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// getTLS returns (creating if necessary) the tlsState for the calling
// goroutine.
func getTLS() *tlsState {
	id := currentGoroutineID()

	tlsMu.RLock()
	s := tlsM[id]
	tlsMu.RUnlock()
	if s != nil {
		return s
	}

	tlsMu.Lock()
	defer tlsMu.Unlock()
	if s = tlsM[id]; s != nil {
		return s
	}
	s = &tlsState{}
	tlsM[id] = s
	return s
}

// releaseTLS drops the calling goroutine's entry. Workers call this when
// their run loop exits so the registry doesn't grow unboundedly over a
// long-lived process that starts and stops many schedulers.
func releaseTLS() {
	id := currentGoroutineID()
	tlsMu.Lock()
	delete(tlsM, id)
	tlsMu.Unlock()
}

// registerTLS installs an explicit tlsState for the given goroutine ID,
// used by a fiber's trampoline to inherit its resumer's scheduler,
// dispatcher, and root fiber exactly once, at first Resume.
func registerTLS(id uint64, s *tlsState) {
	tlsMu.Lock()
	tlsM[id] = s
	tlsMu.Unlock()
}
