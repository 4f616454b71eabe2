package export

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/njyeung/asciiplay/glyph"
)

const (
	cellWidth  = 7
	cellHeight = 13
	plainColor = 15 // white
)

var face = basicfont.Face7x13

// palette is the xterm 256-color table, so every frame color maps exactly.
var palette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		r, g, b := glyph.PaletteRGB(i)
		p[i] = color.RGBA{r, g, b, 0xff}
	}
	return p
}()

type cell struct {
	r     rune
	color int
}

// WriteGIF draws frames onto a looping animated GIF at fps.
func WriteGIF(frames []string, fps float64, path string) (err error) {
	if len(frames) == 0 {
		return errors.New("no frames to export")
	}
	if fps <= 0 {
		fps = 24
	}

	grids := make([][][]cell, len(frames))
	cols, rows := 1, 1
	for i, f := range frames {
		grids[i] = parseCells(f)
		rows = max(rows, len(grids[i]))
		for _, line := range grids[i] {
			cols = max(cols, len(line))
		}
	}

	delay := max(1, int(math.Round(100/fps)))
	anim := &gif.GIF{
		Image: make([]*image.Paletted, len(grids)),
		Delay: make([]int, len(grids)),
	}
	bounds := image.Rect(0, 0, cols*cellWidth, rows*cellHeight)
	for i, g := range grids {
		anim.Image[i] = drawFrame(g, bounds)
		anim.Delay[i] = delay
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("failed to encode gif: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func drawFrame(grid [][]cell, bounds image.Rectangle) *image.Paletted {
	img := image.NewPaletted(bounds, palette)
	d := &font.Drawer{Dst: img, Face: face}

	for y, line := range grid {
		for x, c := range line {
			if c.r == ' ' {
				continue
			}
			src := image.NewUniform(palette[c.color])
			if !hasGlyph(c.r) {
				// no bitmap for this glyph (block shades), fill the cell
				r := image.Rect(x*cellWidth, y*cellHeight, (x+1)*cellWidth, (y+1)*cellHeight)
				draw.Draw(img, r, src, image.Point{}, draw.Src)
				continue
			}
			d.Src = src
			d.Dot = fixed.P(x*cellWidth, y*cellHeight+face.Ascent)
			d.DrawString(string(c.r))
		}
	}
	return img
}

// hasGlyph reports whether face carries a bitmap for r. Missing runes would
// otherwise be drawn as U+FFFD.
func hasGlyph(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	for _, rng := range face.Ranges {
		if r >= rng.Low && r < rng.High {
			return true
		}
	}
	return false
}

// parseCells splits a rendered frame into rows of glyphs with the color that
// was active for each.
func parseCells(frame string) [][]cell {
	var grid [][]cell
	var line []cell
	color := -1

	for i := 0; i < len(frame); {
		switch frame[i] {
		case '\n':
			grid = append(grid, line)
			line = nil
			i++
			continue
		case 0x1b:
			end := strings.IndexByte(frame[i:], 'm')
			if end < 0 || i+1 >= len(frame) || frame[i+1] != '[' {
				i++
				continue
			}
			color = sgrColor(frame[i+2:i+end], color)
			i += end + 1
			continue
		}

		r, size := utf8.DecodeRuneInString(frame[i:])
		c := cell{r: r, color: color}
		if color < 0 || color >= len(palette) {
			c.color = plainColor
		}
		line = append(line, c)
		i += size
	}
	if len(line) > 0 || len(grid) == 0 {
		grid = append(grid, line)
	}
	return grid
}
