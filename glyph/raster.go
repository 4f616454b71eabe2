package glyph

import "fmt"

// Raster is one decoded frame: packed RGB24 samples plus a luma plane of
// the same geometry.
type Raster struct {
	Width  int
	Height int
	RGB    []byte // Width*Height*3 bytes, row-major
	Luma   []byte // Width*Height bytes, row-major
}

// NewRaster wraps RGB24 pixel data and derives its luma plane.
func NewRaster(width, height int, rgb []byte) (Raster, error) {
	if width <= 0 || height <= 0 {
		return Raster{}, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(rgb) < width*height*3 {
		return Raster{}, fmt.Errorf("rgb buffer too small: %d bytes for %dx%d", len(rgb), width, height)
	}

	luma := make([]byte, width*height)
	for i := range luma {
		r := float64(rgb[i*3])
		g := float64(rgb[i*3+1])
		b := float64(rgb[i*3+2])
		// BT.601, same weights FFmpeg and OpenCV use for gray conversion
		luma[i] = uint8(0.299*r + 0.587*g + 0.114*b + 0.5)
	}

	return Raster{
		Width:  width,
		Height: height,
		RGB:    rgb[:width*height*3],
		Luma:   luma,
	}, nil
}

// tap is one source sample contributing to a destination sample.
type tap struct {
	idx    int
	weight float64
}

// areaTaps computes, for each destination position along one axis, the
// source positions it covers and their normalized coverage weights.
func areaTaps(src, dst int) [][]tap {
	scale := float64(src) / float64(dst)
	taps := make([][]tap, dst)

	for i := 0; i < dst; i++ {
		lo := float64(i) * scale
		hi := lo + scale

		var total float64
		var row []tap
		for j := int(lo); j < src && float64(j) < hi; j++ {
			w := min(hi, float64(j+1)) - max(lo, float64(j))
			if w <= 0 {
				continue
			}
			row = append(row, tap{idx: j, weight: w})
			total += w
		}
		if len(row) == 0 {
			// dst wider than src and lo landed exactly on the edge
			row = []tap{{idx: min(int(lo), src-1), weight: 1}}
			total = 1
		}
		for k := range row {
			row[k].weight /= total
		}
		taps[i] = row
	}
	return taps
}

// resample area-averages a plane with the given number of interleaved
// channels down (or up) to dstW x dstH.
func resample(plane []byte, srcW, srcH, channels, dstW, dstH int) []float64 {
	xs := areaTaps(srcW, dstW)
	ys := areaTaps(srcH, dstH)

	out := make([]float64, dstW*dstH*channels)
	acc := make([]float64, channels)

	for dy, yt := range ys {
		for dx, xt := range xs {
			for c := range acc {
				acc[c] = 0
			}
			for _, ty := range yt {
				rowOff := ty.idx * srcW
				for _, tx := range xt {
					w := ty.weight * tx.weight
					base := (rowOff + tx.idx) * channels
					for c := 0; c < channels; c++ {
						acc[c] += w * float64(plane[base+c])
					}
				}
			}
			base := (dy*dstW + dx) * channels
			copy(out[base:base+channels], acc)
		}
	}
	return out
}
