// Package export renders whole sources to character-art frames and writes
// them out as text, GIF or a self-contained HTML player.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/player"
)

// Options controls how frames are sampled and rendered.
type Options struct {
	Render glyph.Options
	FPSCap float64 // upper bound on the export rate, 0 for native
}

// Progress is told how many source frames have been consumed out of total.
// total is 0 when the source does not report its length.
type Progress func(done, total int)

// Collect decodes path through src from start to end and renders the frames
// playback would show, sampling at min(native, FPSCap). It returns the frames
// and the rate they were sampled at.
func Collect(ctx context.Context, src player.Source, path string, opts Options, progress Progress) ([]string, float64, error) {
	meta, err := src.Open(path)
	if err != nil {
		if !errors.Is(err, player.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", player.ErrSourceUnavailable, err)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	native := meta.FPS
	if native <= 0 {
		native = player.DefaultFPS
	}
	fps := native
	if opts.FPSCap > 0 {
		fps = min(native, opts.FPSCap)
	}
	step := native / fps

	var frames []string
	cursor := 0.0
	for {
		if err := ctx.Err(); err != nil {
			return frames, fps, err
		}

		r, n, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, fps, fmt.Errorf("%w: frame %d: %w", player.ErrSourceUnavailable, len(frames), err)
		}
		if progress != nil {
			progress(n+1, meta.TotalFrames)
		}

		if n < int(cursor) {
			continue
		}
		frames = append(frames, glyph.Render(r, opts.Render))
		for int(cursor) <= n {
			cursor += step
		}
	}
	return frames, fps, nil
}
