//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package input

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// TTY is a non-blocking key reader on the controlling terminal. Opening it
// switches stdin to cbreak mode (no line buffering, no echo, signals still
// delivered); Close restores the saved settings.
type TTY struct {
	fd      int
	saved   *unix.Termios
	buf     [64]byte
	pending []byte

	closeOnce sync.Once
	closeErr  error
}

// Open puts stdin into cbreak mode. It fails with ErrUnavailable when stdin
// is not a terminal or its attributes cannot be changed.
func Open() (*TTY, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", ErrUnavailable)
	}

	saved, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read terminal attributes: %v", ErrUnavailable, err)
	}

	cbreak := *saved
	cbreak.Lflag &^= unix.ICANON | unix.ECHO
	cbreak.Cc[unix.VMIN] = 1
	cbreak.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &cbreak); err != nil {
		return nil, fmt.Errorf("%w: failed to set cbreak mode: %v", ErrUnavailable, err)
	}

	return &TTY{fd: fd, saved: saved}, nil
}

// Poll returns the next pending key without blocking. Bytes that arrive
// together (an escape sequence, or several keys typed quickly) are buffered
// and handed out one key per call.
func (t *TTY) Poll() (Key, bool) {
	if len(t.pending) == 0 {
		t.fill()
	}
	if len(t.pending) == 0 {
		return Key{}, false
	}

	k, n := Decode(t.pending)
	t.pending = t.pending[n:]
	return k, true
}

func (t *TTY) fill() {
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return
	}

	m, err := unix.Read(t.fd, t.buf[:])
	if err != nil || m <= 0 {
		return
	}
	t.pending = t.buf[:m]
}

// Close restores the terminal attributes saved by Open. Safe to call more
// than once.
func (t *TTY) Close() error {
	t.closeOnce.Do(func() {
		if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, t.saved); err != nil {
			t.closeErr = fmt.Errorf("failed to restore terminal: %w", err)
		}
	})
	return t.closeErr
}
