// Package input reads keyboard input from the terminal without blocking and
// decodes it into a small set of symbolic keys.
package input

import (
	"errors"
	"unicode/utf8"
)

// ErrUnavailable is returned by Open when stdin cannot be put into cbreak
// mode, e.g. because it is not a terminal.
var ErrUnavailable = errors.New("input device unavailable")

// Kind identifies a decoded key.
type Kind int

const (
	Other Kind = iota
	Space
	Quit
	Left
	Right
	Plus
	Minus
	ToggleFullscreen
	Enter
	Escape
)

var kindNames = [...]string{
	Other:            "other",
	Space:            "space",
	Quit:             "quit",
	Left:             "left",
	Right:            "right",
	Plus:             "plus",
	Minus:            "minus",
	ToggleFullscreen: "fullscreen",
	Enter:            "enter",
	Escape:           "escape",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Key is a decoded key press. Rune is only meaningful for Other.
type Key struct {
	Kind Kind
	Rune rune
}

func (k Key) String() string {
	if k.Kind == Other {
		return "other(" + string(k.Rune) + ")"
	}
	return k.Kind.String()
}

const esc = 0x1b

// Decode decodes the first key in buf and reports how many bytes it used.
// Arrow keys arrive as CSI ("ESC [ D") or SS3 ("ESC O D") sequences, possibly
// with modifier parameters ("ESC [ 1 ; 5 D"). A sequence that is incomplete
// or not an arrow decodes as Escape and is consumed whole. An empty buf
// returns n == 0.
func Decode(buf []byte) (Key, int) {
	if len(buf) == 0 {
		return Key{}, 0
	}

	switch c := buf[0]; c {
	case esc:
		return decodeEscape(buf)
	case ' ':
		return Key{Kind: Space}, 1
	case 'q', 'Q':
		return Key{Kind: Quit}, 1
	case '+', '=':
		return Key{Kind: Plus}, 1
	case '-', '_':
		return Key{Kind: Minus}, 1
	case 'f', 'F':
		return Key{Kind: ToggleFullscreen}, 1
	case '\r', '\n':
		return Key{Kind: Enter}, 1
	}

	r, size := utf8.DecodeRune(buf)
	return Key{Kind: Other, Rune: r}, size
}

func decodeEscape(buf []byte) (Key, int) {
	if len(buf) == 1 {
		return Key{Kind: Escape}, 1
	}

	switch buf[1] {
	case 'O':
		// SS3: single final byte
		if len(buf) < 3 {
			return Key{Kind: Escape}, len(buf)
		}
		return Key{Kind: arrow(buf[2])}, 3
	case '[':
		// CSI: parameter bytes 0x30-0x3F, intermediates 0x20-0x2F, final 0x40-0x7E
		i := 2
		for i < len(buf) && buf[i] >= 0x20 && buf[i] <= 0x3f {
			i++
		}
		if i >= len(buf) || buf[i] < 0x40 || buf[i] > 0x7e {
			return Key{Kind: Escape}, min(i, len(buf))
		}
		return Key{Kind: arrow(buf[i])}, i + 1
	}

	// ESC followed by an ordinary byte (Alt+key): ESC alone, the byte is
	// decoded on the next call.
	return Key{Kind: Escape}, 1
}

func arrow(final byte) Kind {
	switch final {
	case 'C':
		return Right
	case 'D':
		return Left
	}
	return Escape
}
