// Package glyph turns decoded rasters into colored character-art frames.
//
// Everything here is a pure function of its inputs: no package state is
// mutated after init, so frames may be rendered concurrently.
package glyph

import (
	"math"
	"strconv"
	"strings"
)

const (
	colorPrefix = "\x1b[38;5;"
	// Reset restores default terminal attributes; it terminates colored frames.
	Reset = "\x1b[0m"
)

// Options controls how a raster is mapped to glyphs.
type Options struct {
	Width   int     // output columns
	Charset []rune  // darkest-appearing first, index 0 is the emptiest glyph
	Invert  bool    // flip the luma mapping
	Aspect  float64 // vertical compression for tall terminal cells
	Color   bool    // prefix each glyph with a 256-color escape
}

// GridSize returns the output grid for a source of srcW x srcH pixels.
func GridSize(srcW, srcH, width int, aspect float64) (cols, rows int) {
	if srcW <= 0 || width <= 0 {
		return max(width, 1), 1
	}
	rows = int(math.Round(float64(srcH) * (float64(width) / float64(srcW)) * aspect))
	return width, max(1, rows)
}

// Render converts one raster into a character-art frame. Rows are separated
// by '\n'; a colored frame ends with a single Reset.
func Render(r Raster, opts Options) string {
	if len(opts.Charset) == 0 || r.Width <= 0 || r.Height <= 0 {
		return ""
	}

	cols, rows := GridSize(r.Width, r.Height, opts.Width, opts.Aspect)
	luma := resample(r.Luma, r.Width, r.Height, 1, cols, rows)

	var rgb []float64
	if opts.Color {
		rgb = resample(r.RGB, r.Width, r.Height, 3, cols, rows)
	}

	last := len(opts.Charset) - 1

	var b strings.Builder
	if opts.Color {
		// glyph + escape ("\x1b[38;5;NNNm") per cell
		b.Grow(rows * (cols*16 + 1))
	} else {
		b.Grow(rows * (cols*2 + 1))
	}

	var num [3]byte
	for y := 0; y < rows; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			i := y*cols + x

			norm := luma[i] / 255
			if opts.Invert {
				norm = 1 - norm
			}
			idx := int(math.Floor(norm*float64(last) + 1e-9))
			idx = min(max(idx, 0), last)

			if opts.Color {
				code := ANSI256(toByte(rgb[i*3]), toByte(rgb[i*3+1]), toByte(rgb[i*3+2]))
				b.WriteString(colorPrefix)
				b.Write(strconv.AppendInt(num[:0], int64(code), 10))
				b.WriteByte('m')
			}
			b.WriteRune(opts.Charset[idx])
		}
	}

	if opts.Color {
		b.WriteString(Reset)
	}
	return b.String()
}

func toByte(v float64) uint8 {
	return uint8(min(max(math.Round(v), 0), 255))
}
