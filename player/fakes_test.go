package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/input"
)

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.now = c.now.Add(d)
		c.slept += d
	}
	return nil
}

// fakeSource yields identical gradient rasters. cost, when set, advances the
// clock on every decoded frame to simulate slow decoding.
type fakeSource struct {
	meta    Metadata
	raster  glyph.Raster
	failing map[string]bool

	clock *fakeClock
	cost  func(read int) time.Duration

	pos      int
	reads    int
	seeks    int
	lastSeek int
	opened   []string
	closed   int
}

func newFakeSource(t *testing.T, frames int, fps float64) *fakeSource {
	t.Helper()
	const w, h = 64, 36
	rgb := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			rgb[i] = uint8(x * 4)
			rgb[i+1] = uint8(y * 7)
			rgb[i+2] = uint8(x + y)
		}
	}
	r, err := glyph.NewRaster(w, h, rgb)
	if err != nil {
		t.Fatalf("NewRaster failed: %v", err)
	}
	return &fakeSource{
		meta:     Metadata{TotalFrames: frames, FPS: fps, Width: w, Height: h},
		raster:   r,
		lastSeek: -1,
	}
}

func (s *fakeSource) Open(path string) (Metadata, error) {
	if s.failing[path] {
		return Metadata{}, errors.New("no such file")
	}
	s.opened = append(s.opened, path)
	s.pos = 0
	return s.meta, nil
}

func (s *fakeSource) Seek(index int) error {
	s.seeks++
	s.lastSeek = index
	s.pos = index
	return nil
}

func (s *fakeSource) ReadFrame() (glyph.Raster, int, error) {
	if s.pos >= s.meta.TotalFrames {
		return glyph.Raster{}, 0, io.EOF
	}
	s.reads++
	if s.cost != nil && s.clock != nil {
		s.clock.now = s.clock.now.Add(s.cost(s.reads))
	}
	n := s.pos
	s.pos++
	return s.raster, n, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

type fakeAudio struct {
	loadErr error
	loads   int
	plays   []time.Duration
	stops   int
	volume  float64
	closed  bool
}

func (a *fakeAudio) Load(path string) error {
	a.loads++
	return a.loadErr
}

func (a *fakeAudio) Play(from time.Duration) { a.plays = append(a.plays, from) }
func (a *fakeAudio) Stop()                   { a.stops++ }
func (a *fakeAudio) SetVolume(v float64)     { a.volume = v }
func (a *fakeAudio) Close()                  { a.closed = true }

// fakeKeys delivers events[n] on the n-th poll (1-based).
type fakeKeys struct {
	events map[int]input.Key
	polls  int
	closed bool
}

func (k *fakeKeys) Poll() (input.Key, bool) {
	k.polls++
	key, ok := k.events[k.polls]
	return key, ok
}

func (k *fakeKeys) Close() error {
	k.closed = true
	return nil
}

func key(kind input.Kind) input.Key { return input.Key{Kind: kind} }

func testOptions(t *testing.T) Options {
	t.Helper()
	charset, err := glyph.Charset("simple")
	if err != nil {
		t.Fatalf("Charset failed: %v", err)
	}
	return Options{
		Width:     16,
		FPSCap:    24,
		Charset:   charset,
		Aspect:    0.45,
		CacheSize: 100,
		Adaptive:  true,
		Volume:    1,
	}
}

type harness struct {
	c     *Controller
	out   *bytes.Buffer
	logs  *bytes.Buffer
	clock *fakeClock
	src   *fakeSource
}

// newHarness wires a controller to fakes. A nil keys makes input unavailable.
func newHarness(t *testing.T, src *fakeSource, audio Audio, opts Options, keys *fakeKeys) *harness {
	t.Helper()
	h := &harness{
		out:   &bytes.Buffer{},
		logs:  &bytes.Buffer{},
		clock: newFakeClock(),
		src:   src,
	}
	src.clock = h.clock

	h.c = New(src, audio, opts)
	h.c.SetOutput(h.out)
	h.c.SetClock(h.clock)
	h.c.SetTerminalColumns(func() (int, bool) { return 0, false })
	h.c.SetLogger(slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h.c.SetInput(func() (KeyReader, error) {
		if keys == nil {
			return nil, input.ErrUnavailable
		}
		return keys, nil
	})
	return h
}

func (h *harness) frames() []string {
	parts := strings.Split(h.out.String(), syncBegin)
	return parts[1:]
}

// frameRows splits one written frame into its glyph rows and status line.
func frameRows(t *testing.T, frame string) (rows []string, status string) {
	t.Helper()
	frame = strings.TrimPrefix(frame, cursorHome)
	end := strings.Index(frame, syncEnd)
	if end < 0 {
		t.Fatalf("frame not terminated by synchronized update end: %q", frame)
	}
	lines := strings.Split(strings.TrimSuffix(frame[:end], "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("frame has %d lines, expected rows plus status", len(lines))
	}
	status = lines[len(lines)-1]
	if !strings.HasSuffix(status, clearEOL) {
		t.Errorf("status line %q does not end with erase-to-end-of-line", status)
	}
	return lines[:len(lines)-1], strings.TrimSuffix(status, clearEOL)
}
