package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/gif"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/player"
)

type fakeSource struct {
	frames int
	fps    float64
	fail   bool
	next   int
	closed bool
}

func (s *fakeSource) Open(path string) (player.Metadata, error) {
	if s.fail {
		return player.Metadata{}, errors.New("no such file")
	}
	s.next = 0
	return player.Metadata{TotalFrames: s.frames, FPS: s.fps, Width: 4, Height: 2}, nil
}

func (s *fakeSource) Seek(index int) error {
	s.next = index
	return nil
}

func (s *fakeSource) ReadFrame() (glyph.Raster, int, error) {
	if s.next >= s.frames {
		return glyph.Raster{}, 0, io.EOF
	}
	rgb := bytes.Repeat([]byte{byte(s.next * 4)}, 4*2*3)
	r, err := glyph.NewRaster(4, 2, rgb)
	if err != nil {
		return glyph.Raster{}, 0, err
	}
	n := s.next
	s.next++
	return r, n, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func renderOptions() Options {
	return Options{
		Render: glyph.Options{Width: 4, Charset: []rune(" .:#"), Aspect: 0.5},
		FPSCap: 24,
	}
}

func TestCollectSamplesAtCap(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		fps    float64
		want   int
		rate   float64
	}{
		{"capped", 60, 30, 48, 24},
		{"native below cap", 30, 15, 30, 15},
		{"unknown rate", 30, 0, 24, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{frames: tt.frames, fps: tt.fps}
			var lastDone, lastTotal int
			frames, rate, err := Collect(context.Background(), src, "clip.mp4", renderOptions(), func(done, total int) {
				lastDone, lastTotal = done, total
			})
			if err != nil {
				t.Fatalf("Collect failed: %v", err)
			}
			if len(frames) != tt.want {
				t.Errorf("Collect returned %d frames, expected %d", len(frames), tt.want)
			}
			if rate != tt.rate {
				t.Errorf("Collect returned rate %v, expected %v", rate, tt.rate)
			}
			if lastDone != tt.frames || lastTotal != tt.frames {
				t.Errorf("last progress was %d/%d, expected %d/%d", lastDone, lastTotal, tt.frames, tt.frames)
			}
			if !src.closed {
				t.Error("source was not closed")
			}
		})
	}
}

func TestCollectOpenFailure(t *testing.T) {
	_, _, err := Collect(context.Background(), &fakeSource{fail: true}, "missing.mp4", renderOptions(), nil)
	if !errors.Is(err, player.ErrSourceUnavailable) {
		t.Errorf("Collect returned %v, expected ErrSourceUnavailable", err)
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, _, err := Collect(ctx, &fakeSource{frames: 10, fps: 10}, "clip.mp4", renderOptions(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Collect returned %v, expected context.Canceled", err)
	}
	if len(frames) != 0 {
		t.Errorf("Collect returned %d frames after cancel, expected 0", len(frames))
	}
}

func TestWriteText(t *testing.T) {
	const want = "=== Frame 1 ===\nab\ncd\n\n=== Frame 2 ===\nef\n\n"
	frames := []string{"ab\ncd", "ef"}
	dir := t.TempDir()

	plain := filepath.Join(dir, "out.txt")
	if err := WriteText(frames, plain); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	got, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("text export = %q, expected %q", got, want)
	}

	compressed := filepath.Join(dir, "out.txt.zst")
	if err := WriteText(frames, compressed); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	raw, err := os.ReadFile(compressed)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	got, err = dec.DecodeAll(raw, nil)
	if err != nil {
		t.Fatalf("failed to decompress export: %v", err)
	}
	if string(got) != want {
		t.Errorf("decompressed export = %q, expected %q", got, want)
	}
}

func TestAnsiToHTML(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"plain", "a<b\nc", "a&lt;b\nc"},
		{
			"merges runs",
			"\x1b[38;5;196ma\x1b[38;5;196mb\x1b[38;5;21m<\x1b[0m",
			`<span style="color:#ff0000">ab</span><span style="color:#0000ff">&lt;</span>`,
		},
		{
			"newline inside run",
			"\x1b[38;5;231m#\n\x1b[38;5;231m#\x1b[0m",
			"<span style=\"color:#ffffff\">#\n#</span>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ansiToHTML(tt.frame); got != tt.want {
				t.Errorf("ansiToHTML(%q) = %q, expected %q", tt.frame, got, tt.want)
			}
		})
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")
	if err := WriteHTML([]string{"\x1b[38;5;196m@\x1b[0m"}, 12, path); err != nil {
		t.Fatalf("WriteHTML failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	page := string(data)

	for _, want := range []string{
		"Play</button>",
		"Pause</button>",
		"Stop</button>",
		"color:#ff0000",
		"setInterval",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page is missing %q", want)
		}
	}
	if strings.Contains(page, "\x1b") {
		t.Error("page still contains escape sequences")
	}
}

func TestParseCells(t *testing.T) {
	grid := parseCells("a\x1b[38;5;21mb\nc\x1b[0m")
	if len(grid) != 2 {
		t.Fatalf("parseCells returned %d rows, expected 2", len(grid))
	}
	want := [][]cell{
		{{'a', plainColor}, {'b', 21}},
		{{'c', 21}},
	}
	for y := range want {
		if fmt.Sprint(grid[y]) != fmt.Sprint(want[y]) {
			t.Errorf("row %d = %v, expected %v", y, grid[y], want[y])
		}
	}
}

func TestWriteGIF(t *testing.T) {
	frames := []string{
		"\x1b[38;5;196m█\x1b[38;5;196m█\n\x1b[38;5;196m█\x1b[38;5;196m█\x1b[0m",
		"@ \n @",
	}
	path := filepath.Join(t.TempDir(), "out.gif")
	if err := WriteGIF(frames, 12, path); err != nil {
		t.Fatalf("WriteGIF failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("failed to decode gif: %v", err)
	}

	if len(anim.Image) != 2 {
		t.Fatalf("gif has %d frames, expected 2", len(anim.Image))
	}
	if anim.Delay[0] != 8 {
		t.Errorf("delay = %d, expected 8", anim.Delay[0])
	}
	b := anim.Image[0].Bounds()
	if b.Dx() != 2*cellWidth || b.Dy() != 2*cellHeight {
		t.Errorf("frame size = %dx%d, expected %dx%d", b.Dx(), b.Dy(), 2*cellWidth, 2*cellHeight)
	}

	r, g, bl, _ := anim.Image[0].At(cellWidth+3, cellHeight+6).RGBA()
	if r>>8 != 0xff || g != 0 || bl != 0 {
		t.Errorf("filled cell pixel = %02x%02x%02x, expected ff0000", r>>8, g>>8, bl>>8)
	}
}

func TestWriteGIFNoFrames(t *testing.T) {
	if err := WriteGIF(nil, 12, filepath.Join(t.TempDir(), "out.gif")); err == nil {
		t.Error("WriteGIF with no frames succeeded")
	}
}

func TestModelUpdate(t *testing.T) {
	var m = NewModel("clip.mp4")
	if m.Percent() != 0 {
		t.Errorf("Percent returned %v before progress, expected 0", m.Percent())
	}

	next, _ := m.Update(progressMsg{done: 25, total: 100})
	m = next.(Model)
	if m.Percent() != 0.25 {
		t.Errorf("Percent returned %v, expected 0.25", m.Percent())
	}
	if !strings.Contains(m.View(), "25/100 frames") {
		t.Errorf("View is missing the frame count: %q", m.View())
	}

	next, cmd := m.Update(finishedMsg{})
	m = next.(Model)
	if !m.finished || cmd == nil {
		t.Error("finishedMsg did not finish the program")
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	p := LogProgress(log, "clip.mp4")
	for i := 1; i <= 100; i++ {
		p(i, 100)
	}
	p(5, 0)

	lines := strings.Count(buf.String(), "export: collecting")
	if lines != 11 {
		t.Errorf("LogProgress logged %d lines, expected 11", lines)
	}
}
