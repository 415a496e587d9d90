//go:build !linux

package fiber

import "errors"

// newPoller reports a clear, immediate error on platforms without an
// epoll-based multiplexer implementation, per doc.go's platform-support
// note.
func newPoller() (poller, error) {
	return nil, errors.New("fiber: no readiness multiplexer implementation for this platform")
}
