// Package fiber is a multithreaded fiber scheduler fused with an
// edge-triggered I/O reactor and a monotonic timer wheel.
//
// # Architecture
//
// Three tightly coupled layers form the core:
//
//   - [Fiber]: a stackful coroutine that voluntarily suspends via Yield and
//     is resumed via Resume. Since Go does not expose raw machine-context
//     switching to user code, each Fiber runs on its own dedicated
//     goroutine, parked on an unbuffered channel handoff between turns -
//     the Go-native equivalent of the "threaded" fallback implementation
//     (one OS thread per fiber, condition-variable handoff) that the
//     original design allows for platforms where assembly context
//     switching is infeasible. The goroutine's own stack stands in for the
//     fiber's allocated stack.
//
//   - [Scheduler]: an N-worker FIFO task queue. Workers execute a dispatcher
//     fiber that pops tasks and resumes their fibers or callbacks; when the
//     queue is empty, workers resume an idle fiber.
//
//   - [IOManager]: a Scheduler specialization that adds an epoll-based
//     readiness multiplexer, a self-pipe wakeup mechanism, and an embedded
//     [TimerManager]. Its idle loop blocks in epoll with a timeout computed
//     from the nearest pending timer, and both I/O readiness and timer
//     expiry are translated into new scheduler tasks.
//
// # Thread-local state
//
// The C++ original relies on thread_local storage for the currently running
// fiber, a thread's root fiber, the scheduler a thread serves, and its
// dispatcher fiber. Go goroutines have no application-visible identity, so
// this package keys an internal registry by a goroutine ID recovered the
// same way [runtime.Stack]-based goroutine ID tricks are used elsewhere in
// the ecosystem: parsing the "goroutine N [...]" prefix of a minimal stack
// dump. Each fiber's dedicated goroutine registers itself once, inheriting
// its scheduler/dispatcher/root context from whichever goroutine first
// resumed it.
//
// # Platform support
//
// The I/O manager's readiness multiplexer is implemented with epoll on
// Linux. Other platforms build, but poller construction returns an error
// there, so NewIOManager fails; see poller_other.go.
//
// # Concurrency model
//
// Exactly one fiber is RUNNING per OS thread/goroutine at any instant.
// Suspension points are: Fiber.Yield, a worker blocked in the idle fiber
// (inside the epoll wait), and any blocking OS call a user callback makes
// directly (the programmer's responsibility). No stealing, no priority
// classes, no fairness beyond FIFO, no fiber cancellation mid-execution -
// only its pending I/O/timer wakeups can be cancelled.
package fiber
