package player

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		elapsed, total, speed float64
		stepped               bool
		want                  string
	}{
		{0, 2, 1, false, "00:00 / 00:02"},
		{65.9, 125, 1, false, "01:05 / 02:05"},
		{1, 10, 1.5, false, "00:01 / 00:10 Speed: 1.50x"},
		{3, 10, 0.25, true, "00:03 / 00:10 Speed: 0.25x [PAUSED]"},
		{3, 10, 1, true, "00:03 / 00:10 [PAUSED]"},
	}
	for _, tt := range tests {
		if got := statusLine(tt.elapsed, tt.total, tt.speed, tt.stepped); got != tt.want {
			t.Errorf("statusLine(%v, %v, %v, %v) = %q, expected %q", tt.elapsed, tt.total, tt.speed, tt.stepped, got, tt.want)
		}
	}
}

func TestRenderFrameSingleWrite(t *testing.T) {
	w := &countingWriter{}
	s := NewScreen(w, false)

	if err := s.RenderFrame("ab\ncd", "00:01 / 00:02", 5); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	if w.writes != 1 {
		t.Errorf("RenderFrame issued %d writes, expected 1", w.writes)
	}

	want := syncBegin + cursorHome + "ab\ncd\n" + "00:01" + clearEOL + "\n" + syncEnd
	if got := w.String(); got != want {
		t.Errorf("RenderFrame wrote %q, expected %q", got, want)
	}
}

func TestScreenBeginEnd(t *testing.T) {
	var buf bytes.Buffer
	s := NewScreen(&buf, true)
	s.Begin()
	s.End()

	out := buf.String()
	if !strings.HasPrefix(out, clearAll+cursorHome+hideCursor) {
		t.Errorf("Begin wrote %q", out)
	}
	if !strings.Contains(out, showCursor) {
		t.Error("End did not show the cursor")
	}
}

func TestRenderFrameUnclipped(t *testing.T) {
	var buf bytes.Buffer
	s := NewScreen(&buf, false)

	const status = "00:01 / 00:02 Speed: 1.25x [PAUSED]"
	if err := s.RenderFrame("ab", status, 0); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	if !strings.Contains(buf.String(), status+clearEOL) {
		t.Errorf("RenderFrame wrote %q, expected the full status line", buf.String())
	}
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}
