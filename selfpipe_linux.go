//go:build linux

package fiber

import "golang.org/x/sys/unix"

// newSelfPipe creates the non-blocking, edge-triggered-readable one-way
// pipe IOManager uses to wake a blocked idle worker from other threads.
func newSelfPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func writeWakeByte(fd int) error {
	_, err := unix.Write(fd, []byte{0})
	return err
}

// drainPipe reads until the pipe is empty (EAGAIN), discarding bytes.
func drainPipe(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
