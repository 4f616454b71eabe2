package media

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/asticode/go-astiav"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/player"
)

// DefaultMaxWidth bounds the decoded raster width. Wider sources are scaled
// down by FFmpeg before they reach the glyph renderer.
const DefaultMaxWidth = 640

// VideoSource decodes the video stream of a file into rasters. It implements
// player.Source.
type VideoSource struct {
	MaxWidth int

	demuxer *Demuxer
	video   *VideoDecoder
	fps     float64

	next     int // index given to frames without a PTS
	skipTo   int // frames before this index are dropped after a seek
	draining bool
}

// NewVideoSource creates an unopened source
func NewVideoSource() *VideoSource {
	return &VideoSource{MaxWidth: DefaultMaxWidth}
}

// Open opens path and positions at the first frame. Errors wrap
// player.ErrSourceUnavailable.
func (s *VideoSource) Open(path string) (player.Metadata, error) {
	s.Close()

	d, err := NewDemuxer(path)
	if err != nil {
		return player.Metadata{}, fmt.Errorf("%w: %w", player.ErrSourceUnavailable, err)
	}
	if !d.HasVideo() {
		d.Close()
		return player.Metadata{}, fmt.Errorf("%w: no video stream found", player.ErrSourceUnavailable)
	}

	v, err := NewVideoDecoder(d.VideoCodecParameters(), s.MaxWidth)
	if err != nil {
		d.Close()
		return player.Metadata{}, fmt.Errorf("%w: %w", player.ErrSourceUnavailable, err)
	}

	s.demuxer = d
	s.video = v
	s.fps = d.FrameRate()
	s.next = 0
	s.skipTo = 0
	s.draining = false

	w, h := v.Size()
	return player.Metadata{
		TotalFrames: d.FrameCount(s.fps),
		FPS:         s.fps,
		Width:       w,
		Height:      h,
	}, nil
}

// Seek repositions so the next ReadFrame returns index or the first frame
// after it.
func (s *VideoSource) Seek(index int) error {
	if s.demuxer == nil {
		return errors.New("source not open")
	}
	index = max(index, 0)

	if err := s.demuxer.SeekVideo(float64(index) / s.rate()); err != nil {
		return err
	}
	s.video.Flush()

	s.skipTo = index
	s.next = index
	s.draining = false
	return nil
}

// ReadFrame decodes the next frame. Returns io.EOF at end of stream.
func (s *VideoSource) ReadFrame() (glyph.Raster, int, error) {
	if s.demuxer == nil {
		return glyph.Raster{}, 0, errors.New("source not open")
	}

	for {
		pts, err := s.video.Receive()
		switch {
		case err == nil:
			n := s.frameIndex(pts)
			if n < s.skipTo {
				s.video.Discard()
				continue
			}
			r, err := s.video.Raster()
			if err != nil {
				return glyph.Raster{}, 0, err
			}
			return r, n, nil
		case errors.Is(err, astiav.ErrEof):
			return glyph.Raster{}, 0, io.EOF
		case !errors.Is(err, astiav.ErrEagain):
			return glyph.Raster{}, 0, fmt.Errorf("failed to receive video frame: %w", err)
		}

		// decoder wants more input
		if s.draining {
			return glyph.Raster{}, 0, io.EOF
		}

		pkt, err := s.demuxer.ReadVideoPacket()
		if errors.Is(err, astiav.ErrEof) {
			s.draining = true
			if err := s.video.Send(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
				return glyph.Raster{}, 0, fmt.Errorf("failed to flush video decoder: %w", err)
			}
			continue
		}
		if err != nil {
			return glyph.Raster{}, 0, fmt.Errorf("failed to read packet: %w", err)
		}

		err = s.video.Send(pkt)
		pkt.Free()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			return glyph.Raster{}, 0, fmt.Errorf("failed to send video packet: %w", err)
		}
	}
}

// frameIndex maps a PTS to a frame index at the native rate.
func (s *VideoSource) frameIndex(pts int64) int {
	n := s.next
	if pts != astiav.NoPtsValue {
		n = int(math.Round(s.demuxer.FrameTime(pts) * s.rate()))
	}
	s.next = n + 1
	return n
}

func (s *VideoSource) rate() float64 {
	if s.fps > 0 {
		return s.fps
	}
	return player.DefaultFPS
}

// Close releases the decoder and demuxer. The source can be opened again.
func (s *VideoSource) Close() error {
	if s.video != nil {
		s.video.Close()
		s.video = nil
	}
	if s.demuxer != nil {
		s.demuxer.Close()
		s.demuxer = nil
	}
	return nil
}
