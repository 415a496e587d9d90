//go:build linux

package fiber

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller implementation, grounded on the
// epoll-based FastPoller of the teacher's reactor. Unlike the teacher's
// direct-indexed callback array, this poller stays a pure multiplexer:
// it carries only a registration tag per fd, leaving callback/fiber
// bookkeeping to FdContext.
type epollPoller struct {
	epfd int

	mu     sync.RWMutex
	tags   map[int32]uintptr
	closed bool
}

func newPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd, tags: make(map[int32]uintptr)}, nil
}

func (p *epollPoller) Add(fd int, events pollerEvents, tag uintptr) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPollerClosed
	}
	p.tags[int32(fd)] = tag
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.tags, int32(fd))
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) Modify(fd int, events pollerEvents, tag uintptr) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPollerClosed
	}
	p.tags[int32(fd)] = tag
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Delete(fd int) error {
	p.mu.Lock()
	delete(p.tags, int32(fd))
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPollerClosed
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeoutMs milliseconds, retrying silently on
// EINTR per the spec's transient-error handling.
func (p *epollPoller) Wait(timeoutMs int) ([]readinessEvent, error) {
	var buf [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(p.epfd, buf[:], timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}

		out := make([]readinessEvent, 0, n)
		p.mu.RLock()
		for i := 0; i < n; i++ {
			if tag, ok := p.tags[buf[i].Fd]; ok {
				out = append(out, readinessEvent{tag: tag, events: fromEpoll(buf[i].Events)})
			}
		}
		p.mu.RUnlock()
		return out, nil
	}
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

func toEpoll(e pollerEvents) uint32 {
	v := uint32(unix.EPOLLET)
	if e&pollerRead != 0 {
		v |= unix.EPOLLIN
	}
	if e&pollerWrite != 0 {
		v |= unix.EPOLLOUT
	}
	return v
}

func fromEpoll(v uint32) pollerEvents {
	var e pollerEvents
	if v&unix.EPOLLIN != 0 {
		e |= pollerRead
	}
	if v&unix.EPOLLOUT != 0 {
		e |= pollerWrite
	}
	if v&unix.EPOLLERR != 0 {
		e |= pollerError
	}
	if v&unix.EPOLLHUP != 0 {
		e |= pollerHangup
	}
	return e
}
