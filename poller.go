package fiber

// pollerEvents is the readiness/subscription bitmask passed to and
// returned from a poller.
type pollerEvents uint32

const (
	pollerRead pollerEvents = 1 << iota
	pollerWrite
	pollerError
	pollerHangup
)

// readinessEvent is one readiness notification produced by Wait: the tag
// supplied at registration time (an FdContext's address, or the tickle
// fd's sentinel tag) and the bits that fired.
type readinessEvent struct {
	tag    uintptr
	events pollerEvents
}

// poller is the readiness-multiplexer capability the IOManager idle loop
// requires of its host OS: add/modify/delete with edge-triggered
// subscription and a per-registration user tag, and a bounded-timeout
// wait yielding readable/writable/error/hangup bits.
type poller interface {
	Add(fd int, events pollerEvents, tag uintptr) error
	Modify(fd int, events pollerEvents, tag uintptr) error
	Delete(fd int) error
	Wait(timeoutMs int) ([]readinessEvent, error)
	Close() error
}
