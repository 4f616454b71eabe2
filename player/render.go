package player

import (
	"bytes"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/njyeung/asciiplay/glyph"
)

const (
	syncBegin  = "\x1b[?2026h"
	syncEnd    = "\x1b[?2026l"
	cursorHome = "\x1b[H"
	clearAll   = "\x1b[2J"
	clearEOL   = "\x1b[K"
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
)

// Screen writes character-art frames to the terminal. Every frame goes out in
// a single Write wrapped in a synchronized update, so the terminal never shows
// a partially drawn frame.
type Screen struct {
	out    io.Writer
	color  bool
	status lipgloss.Style
	buf    bytes.Buffer
}

// NewScreen creates a screen writer on out. Styling of the status line is
// only applied when color is true.
func NewScreen(out io.Writer, color bool) *Screen {
	r := lipgloss.NewRenderer(out)
	return &Screen{
		out:    out,
		color:  color,
		status: r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// SetOutput changes the output writer
func (s *Screen) SetOutput(w io.Writer) {
	s.out = w
}

// Begin clears the screen once and hides the cursor
func (s *Screen) Begin() error {
	_, err := io.WriteString(s.out, clearAll+cursorHome+hideCursor)
	return err
}

// Clear wipes the screen, used when the frame geometry changes
func (s *Screen) Clear() error {
	_, err := io.WriteString(s.out, clearAll+cursorHome)
	return err
}

// RenderFrame draws frame at the origin followed by the status line. When
// cols is positive the status line is cut to cols cells so it never wraps.
func (s *Screen) RenderFrame(frame, status string, cols int) error {
	s.buf.Reset()

	s.buf.WriteString(syncBegin)
	s.buf.WriteString(cursorHome)
	s.buf.WriteString(frame)
	s.buf.WriteByte('\n')

	if cols > 0 {
		status = runewidth.Truncate(status, cols, "")
	}
	if s.color {
		status = s.status.Render(status)
	}
	s.buf.WriteString(status)
	s.buf.WriteString(clearEOL)
	s.buf.WriteByte('\n')
	s.buf.WriteString(syncEnd)

	_, err := s.out.Write(s.buf.Bytes())
	return err
}

// Banner prints a line of text below whatever is on screen
func (s *Screen) Banner(text string) error {
	_, err := fmt.Fprintf(s.out, "\n%s\n", text)
	return err
}

// End resets attributes and shows the cursor again
func (s *Screen) End() error {
	_, err := io.WriteString(s.out, glyph.Reset+showCursor+"\nDone.\n")
	return err
}

// statusLine formats elapsed/total time plus the speed indicator.
func statusLine(elapsed, total, speed float64, stepped bool) string {
	status := formatTime(elapsed) + " / " + formatTime(total)
	if speed != 1 {
		status += fmt.Sprintf(" Speed: %.2fx", speed)
	}
	if stepped {
		status += " [PAUSED]"
	}
	return status
}

func formatTime(seconds float64) string {
	s := max(int(seconds), 0)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
