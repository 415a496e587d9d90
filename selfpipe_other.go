//go:build !linux

package fiber

import "errors"

func newSelfPipe() (r, w int, err error) {
	return 0, 0, errors.New("fiber: self-pipe unsupported on this platform")
}

func writeWakeByte(int) error { return ErrPollerClosed }

func drainPipe(int) {}

func closeFD(int) error { return nil }
