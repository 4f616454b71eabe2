package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/njyeung/asciiplay/framecache"
	"github.com/njyeung/asciiplay/input"
)

// State is the playback state of a Controller.
type State int

const (
	Setup State = iota
	Playing
	Paused
	Seeking
	Stopped
)

func (s State) String() string {
	switch s {
	case Setup:
		return "setup"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options is the resolved configuration read by the Controller.
type Options struct {
	Width       int     // configured display width in cells
	FPSCap      float64 // upper bound on the display rate, 0 for native
	Charset     []rune
	Invert      bool
	Aspect      float64
	Color       bool
	CacheSize   int
	Adaptive    bool // lower the display rate when rendering falls behind
	Audio       bool
	Volume      float64
	Loop        bool // restart at frame 0 instead of stopping at end of stream
	StartPaused bool // begin paused, for stepping with Enter
}

// Controller plays one source at a time on the terminal. It is driven by a
// single goroutine; none of its methods are safe for concurrent use.
type Controller struct {
	opts   Options
	source Source
	audio  Audio

	openInput func() (KeyReader, error)
	termCols  func() (int, bool)
	clock     Clock
	screen    *Screen
	log       *slog.Logger
	cache     *framecache.Cache

	state   State
	bound   bool
	path    string
	meta    Metadata
	audioOK bool
	s       session
}

// New creates a controller that decodes through source. audio may be nil to
// play silently.
func New(source Source, audio Audio, opts Options) *Controller {
	c := &Controller{
		opts:      opts,
		source:    source,
		audio:     audio,
		openInput: openTTY,
		termCols:  TerminalColumns,
		clock:     SystemClock(),
		screen:    NewScreen(os.Stdout, opts.Color),
		log:       slog.Default(),
		cache:     framecache.New(opts.CacheSize),
	}
	c.Reset()
	return c
}

func openTTY() (KeyReader, error) {
	t, err := input.Open()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetOutput sets the writer for frames (terminal output)
func (c *Controller) SetOutput(w io.Writer) {
	c.screen.SetOutput(w)
}

// SetClock replaces the pacing clock
func (c *Controller) SetClock(clock Clock) {
	c.clock = clock
}

// SetInput replaces how the key reader is acquired for each Play
func (c *Controller) SetInput(open func() (KeyReader, error)) {
	c.openInput = open
}

// SetTerminalColumns replaces the terminal width probe
func (c *Controller) SetTerminalColumns(fn func() (int, bool)) {
	c.termCols = fn
}

// SetLogger sets the logger used for playback events
func (c *Controller) SetLogger(l *slog.Logger) {
	c.log = l
}

// Reset returns all session state to its initial values and drops cached
// frames. SetupVideo calls it before binding a new source.
func (c *Controller) Reset() {
	c.s = newSession()
	c.cache.Clear()
	c.state = Setup
	c.bound = false
	c.path = ""
	c.meta = Metadata{}
	c.audioOK = false
}

// SetupVideo opens path and derives the display rate and width for it.
// Errors wrap ErrSourceUnavailable. An audio failure is only logged.
func (c *Controller) SetupVideo(path string) error {
	c.Reset()

	meta, err := c.source.Open(path)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if meta.FPS <= 0 {
		meta.FPS = DefaultFPS
	}

	c.meta = meta
	c.path = path
	c.bound = true

	c.s.fps = meta.FPS
	if c.opts.FPSCap > 0 {
		c.s.fps = min(meta.FPS, c.opts.FPSCap)
	}
	c.s.step = meta.FPS / c.s.fps
	c.s.srcNext = 0

	cols, known := c.termCols()
	c.s.width = windowedWidth(c.opts.Width, cols, known)

	if c.audio != nil && c.opts.Audio {
		if err := c.audio.Load(path); err != nil {
			c.log.Warn("player: audio unavailable, playing muted", "path", path, "err", err)
		} else {
			c.audio.SetVolume(c.opts.Volume)
			c.audioOK = true
		}
	}

	c.log.Debug("player: video ready",
		"path", path,
		"frames", meta.TotalFrames,
		"native_fps", meta.FPS,
		"fps", c.s.fps,
		"width", c.s.width,
	)
	return nil
}

// Play runs the playback loop until quit, end of stream, cancellation of
// ctx or an unrecoverable error. The terminal is restored on every path and
// the source is released. Cancellation is not an error.
func (c *Controller) Play(ctx context.Context) error {
	if !c.bound {
		return errors.New("no video set up")
	}

	keys, err := c.openInput()
	if err != nil {
		c.log.Warn("player: keyboard input unavailable, controls disabled", "err", err)
		keys = noKeys{}
	}
	defer func() {
		if err := keys.Close(); err != nil {
			c.log.Error("player: failed to restore terminal", "err", err)
		}
	}()

	if err := c.screen.Begin(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to prepare screen: %w", err)
	}
	defer c.screen.End()
	defer c.teardown()

	c.cache.Clear()
	c.s.lastFrame = c.clock.Now()

	if c.opts.StartPaused {
		c.state = Paused
	} else {
		c.state = Playing
		c.resumeAudio()
	}

	return c.run(ctx, keys)
}

// teardown stops audio and releases the source.
func (c *Controller) teardown() {
	if c.audioOK {
		c.audio.Stop()
		c.s.audioOn = false
	}
	if err := c.source.Close(); err != nil {
		c.log.Warn("player: failed to close source", "err", err)
	}
	c.bound = false
	c.state = Stopped
}

// Close releases the audio device
func (c *Controller) Close() {
	if c.audio != nil {
		c.audio.Close()
	}
}

// State returns the current playback state
func (c *Controller) State() State { return c.state }

// Index returns the last displayed source frame, -1 before the first
func (c *Controller) Index() int { return c.s.index }

// Speed returns the playback speed multiplier
func (c *Controller) Speed() float64 { return c.s.speed }

// TargetFPS returns the current display rate
func (c *Controller) TargetFPS() float64 { return c.s.fps }

// Width returns the current display width in cells
func (c *Controller) Width() int { return c.s.width }

// Metadata returns the metadata of the bound source
func (c *Controller) Metadata() Metadata { return c.meta }

type noKeys struct{}

func (noKeys) Poll() (input.Key, bool) { return input.Key{}, false }
func (noKeys) Close() error            { return nil }
