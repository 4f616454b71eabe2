package media

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/njyeung/asciiplay/glyph"
)

// VideoDecoder decodes video frames and scales them to RGB rasters no wider
// than maxWidth.
type VideoDecoder struct {
	codecCtx *astiav.CodecContext
	swsCtx   *astiav.SoftwareScaleContext
	frame    *astiav.Frame
	rgbFrame *astiav.Frame

	maxWidth  int
	dstWidth  int
	dstHeight int

	mu     sync.Mutex
	closed bool
}

// NewVideoDecoder creates a video decoder from codec parameters
func NewVideoDecoder(codecParams *astiav.CodecParameters, maxWidth int) (*VideoDecoder, error) {
	v := &VideoDecoder{maxWidth: maxWidth}

	codec := astiav.FindDecoder(codecParams.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("video codec not found: %s", codecParams.CodecID())
	}

	v.codecCtx = astiav.AllocCodecContext(codec)
	if v.codecCtx == nil {
		return nil, fmt.Errorf("failed to allocate video codec context")
	}

	if err := codecParams.ToCodecContext(v.codecCtx); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to copy video codec params: %w", err)
	}

	if err := v.codecCtx.Open(codec, nil); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to open video codec: %w", err)
	}

	v.frame = astiav.AllocFrame()
	v.rgbFrame = astiav.AllocFrame()
	v.dstWidth, v.dstHeight = scaledSize(codecParams.Width(), codecParams.Height(), maxWidth)

	return v, nil
}

// scaledSize shrinks w x h to at most maxWidth wide, keeping the aspect
// ratio. Dimensions stay even for the scaler.
func scaledSize(w, h, maxWidth int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	dh := h * maxWidth / w
	dh += dh % 2
	return maxWidth, max(dh, 2)
}

// Size returns the raster dimensions produced by Raster
func (v *VideoDecoder) Size() (int, int) {
	return v.dstWidth, v.dstHeight
}

// Send feeds a packet to the decoder. A nil packet starts draining.
func (v *VideoDecoder) Send(pkt *astiav.Packet) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("video decoder closed")
	}
	return v.codecCtx.SendPacket(pkt)
}

// Receive decodes the next frame and returns its PTS. It returns
// astiav.ErrEagain when the decoder needs more packets and astiav.ErrEof once
// drained. The frame is held until Raster or Discard.
func (v *VideoDecoder) Receive() (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, fmt.Errorf("video decoder closed")
	}
	if err := v.codecCtx.ReceiveFrame(v.frame); err != nil {
		return 0, err
	}
	return v.frame.Pts(), nil
}

// Discard drops the frame returned by Receive
func (v *VideoDecoder) Discard() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frame != nil {
		v.frame.Unref()
	}
}

// Raster scales the frame returned by Receive to RGB24 and releases it
func (v *VideoDecoder) Raster() (glyph.Raster, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	defer v.frame.Unref()

	// Initialize sws context on the first frame, when the pixel format is known
	if v.swsCtx == nil {
		if err := v.initSwsContext(); err != nil {
			return glyph.Raster{}, err
		}
	}

	if err := v.swsCtx.ScaleFrame(v.frame, v.rgbFrame); err != nil {
		return glyph.Raster{}, fmt.Errorf("failed to scale frame: %w", err)
	}

	rgbBytes, err := v.rgbFrame.Data().Bytes(1)
	if err != nil {
		return glyph.Raster{}, fmt.Errorf("failed to get RGB bytes: %w", err)
	}

	// Copy the data since the frame buffer will be reused
	rgb := make([]byte, len(rgbBytes))
	copy(rgb, rgbBytes)

	return glyph.NewRaster(v.dstWidth, v.dstHeight, rgb)
}

func (v *VideoDecoder) initSwsContext() error {
	if v.dstWidth == 0 || v.dstHeight == 0 {
		v.dstWidth, v.dstHeight = scaledSize(v.frame.Width(), v.frame.Height(), v.maxWidth)
	}

	// Create scaling context: source format -> RGB24 at target size
	var err error
	v.swsCtx, err = astiav.CreateSoftwareScaleContext(
		v.frame.Width(), v.frame.Height(), v.frame.PixelFormat(),
		v.dstWidth, v.dstHeight, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("failed to create sws context: %w", err)
	}

	v.rgbFrame.SetWidth(v.dstWidth)
	v.rgbFrame.SetHeight(v.dstHeight)
	v.rgbFrame.SetPixelFormat(astiav.PixelFormatRgb24)

	if err := v.rgbFrame.AllocBuffer(1); err != nil {
		return fmt.Errorf("failed to allocate RGB frame buffer: %w", err)
	}

	return nil
}

// Flush drops buffered frames, required after a seek
func (v *VideoDecoder) Flush() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.closed {
		v.codecCtx.FlushBuffers()
	}
}

// Close releases all resources
func (v *VideoDecoder) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true

	if v.frame != nil {
		v.frame.Free()
		v.frame = nil
	}
	if v.rgbFrame != nil {
		v.rgbFrame.Free()
		v.rgbFrame = nil
	}
	if v.swsCtx != nil {
		v.swsCtx.Free()
		v.swsCtx = nil
	}
	if v.codecCtx != nil {
		v.codecCtx.Free()
		v.codecCtx = nil
	}
}
