package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/input"
)

// session is the mutable state of one playback.
type session struct {
	cursor     float64 // next source index to show, fractional
	index      int     // last displayed source index
	speed      float64
	fullscreen bool
	width      int
	fps        float64 // display rate, at most the native rate
	step       float64 // source frames per displayed frame
	window     *renderWindow
	srcNext    int // index the decoder returns next, -1 when unknown
	lastFrame  time.Time
	audioOn    bool
}

func newSession() session {
	return session{
		index:   -1,
		speed:   1,
		srcNext: -1,
		window:  newRenderWindow(renderWindowSize),
	}
}

func (s *session) budget() time.Duration {
	return time.Duration(float64(time.Second) / s.fps)
}

func (c *Controller) run(ctx context.Context, keys KeyReader) error {
	for c.state != Stopped {
		if ctx.Err() != nil {
			c.log.Debug("player: interrupted", "index", c.s.index)
			return nil
		}

		if k, ok := keys.Poll(); ok {
			if err := c.handleKey(k); err != nil {
				return err
			}
			if c.state == Stopped {
				break
			}
		}

		if c.state == Paused {
			if err := c.clock.Sleep(ctx, pauseQuantum); err != nil {
				return nil
			}
			continue
		}

		if err := c.advance(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// advance shows the frame under the cursor, moves the cursor on and sleeps
// out the rest of the frame budget.
func (c *Controller) advance(ctx context.Context) error {
	idx := int(c.s.cursor)
	if c.meta.TotalFrames > 0 && idx >= c.meta.TotalFrames {
		if !c.endOfStream() {
			return nil
		}
		idx = 0
	}

	start := c.clock.Now()
	frame, err := c.frame(idx)
	if errors.Is(err, io.EOF) && idx > 0 {
		if !c.endOfStream() {
			return nil
		}
		idx = 0
		frame, err = c.frame(idx)
	}
	if errors.Is(err, io.EOF) {
		c.log.Debug("player: end of stream", "index", c.s.index)
		c.state = Stopped
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrSourceUnavailable, idx, err)
	}

	c.s.window.Push(c.clock.Now().Sub(start))
	c.throttle()

	if err := c.display(idx, frame, false); err != nil {
		return err
	}
	c.s.cursor += c.s.step

	return c.pace(ctx)
}

// endOfStream stops playback, or rewinds when looping. Reports whether
// playback continues.
func (c *Controller) endOfStream() bool {
	if !c.opts.Loop {
		c.log.Debug("player: end of stream", "index", c.s.index)
		c.state = Stopped
		return false
	}

	c.log.Debug("player: looping", "index", c.s.index)
	c.s.cursor = 0
	if c.s.speed == 1 {
		c.playAudio(0)
	}
	return true
}

func (c *Controller) pace(ctx context.Context) error {
	wait := time.Duration(float64(c.s.budget())/c.s.speed) - c.clock.Now().Sub(c.s.lastFrame)
	if wait > 0 {
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	c.s.lastFrame = c.clock.Now()
	return nil
}

// throttle lowers the display rate by one when recent frames used more than
// throttleRatio of the budget. It never raises it again.
func (c *Controller) throttle() {
	if !c.opts.Adaptive || !c.s.window.Full() || c.s.fps <= MinFPS {
		return
	}
	avg := c.s.window.Average()
	if float64(avg) <= throttleRatio*float64(c.s.budget()) {
		return
	}

	c.s.fps = max(MinFPS, c.s.fps-1)
	c.s.step = c.meta.FPS / c.s.fps
	c.log.Info("player: adaptive fps lowered", "fps", c.s.fps, "avg_render", avg)
}

func (c *Controller) display(idx int, frame string, stepped bool) error {
	elapsed := float64(idx) / c.meta.FPS
	total := float64(c.meta.TotalFrames) / c.meta.FPS

	status := statusLine(elapsed, total, c.s.speed, stepped)
	cols, known := c.termCols()
	if !known {
		cols = 0
	}
	if err := c.screen.RenderFrame(frame, status, cols); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.s.index = idx
	return nil
}

// frame returns the rendered frame for idx from the cache, or decodes and
// renders it.
func (c *Controller) frame(idx int) (string, error) {
	if f, ok := c.cache.Get(idx); ok {
		return f, nil
	}

	r, err := c.readRaster(idx)
	if err != nil {
		return "", err
	}

	f := glyph.Render(r, glyph.Options{
		Width:   c.s.width,
		Charset: c.opts.Charset,
		Invert:  c.opts.Invert,
		Aspect:  c.opts.Aspect,
		Color:   c.opts.Color,
	})
	c.cache.Put(idx, f)
	return f, nil
}

// readRaster positions the source on idx and decodes it. Short forward gaps
// are decoded through; anything else seeks.
func (c *Controller) readRaster(idx int) (glyph.Raster, error) {
	ahead := idx - c.s.srcNext
	if c.s.srcNext < 0 || ahead < 0 || ahead > max(int(c.meta.FPS), 1) {
		if err := c.source.Seek(idx); err != nil {
			c.s.srcNext = -1
			return glyph.Raster{}, fmt.Errorf("failed to seek to frame %d: %w", idx, err)
		}
		c.s.srcNext = idx
	}

	for {
		r, n, err := c.source.ReadFrame()
		if err != nil {
			c.s.srcNext = -1
			return glyph.Raster{}, err
		}
		c.s.srcNext = n + 1
		if n >= idx {
			return r, nil
		}
	}
}

func (c *Controller) handleKey(k input.Key) error {
	c.log.Debug("player: key", "key", k.String(), "state", c.state.String())

	switch k.Kind {
	case input.Space:
		c.togglePause()
	case input.Quit:
		c.state = Stopped
	case input.Left:
		return c.seek(-1)
	case input.Right:
		return c.seek(1)
	case input.Plus:
		c.setSpeed(c.s.speed + SpeedStep)
	case input.Minus:
		c.setSpeed(c.s.speed - SpeedStep)
	case input.ToggleFullscreen:
		return c.toggleFullscreen()
	case input.Enter:
		if c.state == Paused {
			return c.stepFrame()
		}
	}
	return nil
}

func (c *Controller) togglePause() {
	switch c.state {
	case Playing:
		c.state = Paused
		c.stopAudio()
	case Paused:
		c.state = Playing
		c.s.lastFrame = c.clock.Now()
		c.resumeAudio()
	}
}

// seek moves the cursor SeekSeconds in dir, clamped to [0, TotalFrames].
// Cached frames are dropped and the prior running state is restored.
func (c *Controller) seek(dir int) error {
	prev := c.state
	c.state = Seeking
	defer func() { c.state = prev }()

	delta := int(math.Round(SeekSeconds * c.meta.FPS))
	target := max(int(c.s.cursor)+dir*delta, 0)
	if c.meta.TotalFrames > 0 {
		target = min(target, c.meta.TotalFrames)
	}

	if c.meta.TotalFrames <= 0 || target < c.meta.TotalFrames {
		if err := c.source.Seek(target); err != nil {
			c.s.srcNext = -1
			return fmt.Errorf("%w: failed to seek to frame %d: %w", ErrSourceUnavailable, target, err)
		}
		c.s.srcNext = target
	}

	c.s.cursor = float64(target)
	c.s.index = target - 1
	c.cache.Clear()
	c.log.Debug("player: seek", "target", target)

	if prev == Playing {
		c.resumeAudio()
	}
	return nil
}

func (c *Controller) setSpeed(v float64) {
	v = min(max(v, MinSpeed), MaxSpeed)
	if v == c.s.speed {
		return
	}
	c.s.speed = v

	if c.state != Playing {
		return
	}
	if v == 1 {
		c.resumeAudio()
	} else {
		c.stopAudio()
	}
}

func (c *Controller) toggleFullscreen() error {
	c.s.fullscreen = !c.s.fullscreen

	cols, known := c.termCols()
	if c.s.fullscreen && known {
		c.s.width = cols
	} else {
		c.s.width = windowedWidth(c.opts.Width, cols, known)
	}

	c.cache.Clear()
	if err := c.screen.Clear(); err != nil {
		return fmt.Errorf("failed to clear screen: %w", err)
	}
	return nil
}

// stepFrame shows exactly the frame after the last displayed one.
func (c *Controller) stepFrame() error {
	idx := c.s.index + 1
	if c.meta.TotalFrames > 0 && idx >= c.meta.TotalFrames {
		return nil
	}

	frame, err := c.frame(idx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrSourceUnavailable, idx, err)
	}

	if err := c.display(idx, frame, true); err != nil {
		return err
	}
	c.s.cursor = float64(idx) + c.s.step
	return nil
}

// position is the playback offset of the cursor.
func (c *Controller) position() time.Duration {
	return time.Duration(c.s.cursor / c.meta.FPS * float64(time.Second))
}

// resumeAudio restarts audio at the cursor. Audio only plays at normal speed.
func (c *Controller) resumeAudio() {
	if c.s.speed == 1 {
		c.playAudio(c.position())
	}
}

func (c *Controller) playAudio(from time.Duration) {
	if !c.audioOK {
		return
	}
	c.audio.Play(from)
	c.s.audioOn = true
}

func (c *Controller) stopAudio() {
	if !c.audioOK || !c.s.audioOn {
		return
	}
	c.audio.Stop()
	c.s.audioOn = false
}
