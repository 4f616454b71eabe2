// Package player drives interactive character-art playback of a single
// source: frame pacing, the pause/seek/speed state machine, keyboard control,
// the rendered-frame cache and the adaptive frame-rate throttle.
package player

import (
	"context"
	"errors"
	"time"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/input"
)

var (
	// ErrSourceUnavailable means the source could not be opened or decoded.
	// It ends the current source; a playlist moves on to the next one.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrAudioLoadFailed means the audio track could not be extracted.
	// Playback continues muted.
	ErrAudioLoadFailed = errors.New("audio load failed")
)

// Source is a seekable stream of decoded frames.
type Source interface {
	// Open binds the source to path and positions it at frame 0
	Open(path string) (Metadata, error)

	// Seek repositions so the next ReadFrame returns index (or the first
	// frame after it)
	Seek(index int) error

	// ReadFrame decodes the next frame and reports its index. Returns io.EOF
	// at end of stream.
	ReadFrame() (glyph.Raster, int, error)

	// Close releases decoder resources
	Close() error
}

// Audio plays the soundtrack of the current source.
type Audio interface {
	// Load extracts the audio track of path
	Load(path string) error

	// Play starts (or restarts) playback at the given offset
	Play(from time.Duration)

	// Stop halts playback
	Stop()

	// SetVolume sets the volume in [0, 1]
	SetVolume(v float64)

	// Close releases all resources
	Close()
}

// KeyReader delivers key presses without blocking.
type KeyReader interface {
	Poll() (input.Key, bool)
	Close() error
}

// Clock provides the time source for frame pacing
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Sleep pauses for d, returning ctx.Err() early if ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

// Metadata describes an opened source.
type Metadata struct {
	TotalFrames int     // 0 when unknown
	FPS         float64 // native frame rate
	Width       int     // raster width in pixels
	Height      int     // raster height in pixels
}

const (
	// DefaultFPS is assumed when a source does not report a frame rate
	DefaultFPS = 30.0

	// MinFPS is the floor of the adaptive throttle
	MinFPS = 10.0

	// MinSpeed and MaxSpeed bound the playback speed, SpeedStep is one key press
	MinSpeed  = 0.25
	MaxSpeed  = 3.0
	SpeedStep = 0.25

	// SeekSeconds is the distance of one Left/Right seek
	SeekSeconds = 5

	// MinWindowedWidth is the smallest non-fullscreen width when the terminal is narrow
	MinWindowedWidth = 40

	// pauseQuantum bounds input latency while paused
	pauseQuantum = 50 * time.Millisecond

	// renderWindowSize is the number of render durations averaged by the throttle
	renderWindowSize = 30

	// throttleRatio of the frame budget above which the throttle kicks in
	throttleRatio = 0.8
)
