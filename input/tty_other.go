//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package input

// TTY is not supported on this platform.
type TTY struct{}

// Open always fails with ErrUnavailable on this platform.
func Open() (*TTY, error) {
	return nil, ErrUnavailable
}

func (t *TTY) Poll() (Key, bool) { return Key{}, false }

func (t *TTY) Close() error { return nil }
