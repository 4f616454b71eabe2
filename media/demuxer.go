// Package media decodes video and audio with FFmpeg. VideoSource feeds
// scaled RGB rasters to the player; AudioPlayer plays the soundtrack through
// the system speaker.
package media

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/asticode/go-astiav"
)

func init() {
	// Suppress FFmpeg log messages
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// Demuxer handles opening media and reading packets
type Demuxer struct {
	formatCtx   *astiav.FormatContext
	videoStream *astiav.Stream
	audioStream *astiav.Stream
	videoIdx    int
	audioIdx    int

	// Time base for PTS conversion
	videoTimeBase astiav.Rational
	audioTimeBase astiav.Rational

	// first video PTS; frame times are measured from here
	videoStart int64

	mu     sync.Mutex
	closed bool
}

// NewDemuxer opens the media file at path
func NewDemuxer(path string) (*Demuxer, error) {
	d := &Demuxer{
		videoIdx: -1,
		audioIdx: -1,
	}

	d.formatCtx = astiav.AllocFormatContext()
	if d.formatCtx == nil {
		return nil, fmt.Errorf("failed to allocate format context")
	}

	if err := d.formatCtx.OpenInput(path, nil, nil); err != nil {
		d.formatCtx.Free()
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	if err := d.formatCtx.FindStreamInfo(nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to find stream info: %w", err)
	}

	// First video and first audio stream win
	for _, stream := range d.formatCtx.Streams() {
		switch stream.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if d.videoIdx == -1 {
				d.videoIdx = stream.Index()
				d.videoStream = stream
				d.videoTimeBase = stream.TimeBase()
				if start := stream.StartTime(); start != astiav.NoPtsValue {
					d.videoStart = start
				}
			}
		case astiav.MediaTypeAudio:
			if d.audioIdx == -1 {
				d.audioIdx = stream.Index()
				d.audioStream = stream
				d.audioTimeBase = stream.TimeBase()
			}
		}
	}

	return d, nil
}

// HasVideo returns true if there's a video stream
func (d *Demuxer) HasVideo() bool {
	return d.videoIdx != -1
}

// HasAudio returns true if there's an audio stream
func (d *Demuxer) HasAudio() bool {
	return d.audioIdx != -1
}

// VideoCodecParameters returns the video codec parameters
func (d *Demuxer) VideoCodecParameters() *astiav.CodecParameters {
	if d.videoStream == nil {
		return nil
	}
	return d.videoStream.CodecParameters()
}

// AudioCodecParameters returns the audio codec parameters
func (d *Demuxer) AudioCodecParameters() *astiav.CodecParameters {
	if d.audioStream == nil {
		return nil
	}
	return d.audioStream.CodecParameters()
}

// FrameRate returns the native video frame rate, 0 when the container does
// not say.
func (d *Demuxer) FrameRate() float64 {
	if d.videoStream == nil {
		return 0
	}
	for _, r := range []astiav.Rational{d.videoStream.AvgFrameRate(), d.videoStream.RFrameRate()} {
		if r.Num() > 0 && r.Den() > 0 {
			return float64(r.Num()) / float64(r.Den())
		}
	}
	return 0
}

// FrameCount returns the number of video frames, estimated from the duration
// when the container has no frame count. 0 means unknown.
func (d *Demuxer) FrameCount(fps float64) int {
	if d.videoStream == nil {
		return 0
	}
	if n := d.videoStream.NbFrames(); n > 0 {
		return int(n)
	}
	if fps <= 0 {
		return 0
	}
	if dur := d.videoStream.Duration(); dur > 0 {
		return int(math.Round(d.PTSToSeconds(dur, true) * fps))
	}
	if dur := d.formatCtx.Duration(); dur > 0 {
		// container duration is in AV_TIME_BASE (microseconds)
		return int(math.Round(float64(dur) / 1e6 * fps))
	}
	return 0
}

// ReadPacket reads the next packet from the stream
// Returns the packet and whether it's a video packet (true) or audio packet (false)
// Returns astiav.ErrEof when the stream ends
func (d *Demuxer) ReadPacket() (*astiav.Packet, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, fmt.Errorf("demuxer closed")
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		return nil, false, fmt.Errorf("failed to allocate packet")
	}

	if err := d.formatCtx.ReadFrame(pkt); err != nil {
		pkt.Free()
		return nil, false, err
	}

	isVideo := pkt.StreamIndex() == d.videoIdx
	return pkt, isVideo, nil
}

// ReadVideoPacket returns the next video packet, dropping everything else
func (d *Demuxer) ReadVideoPacket() (*astiav.Packet, error) {
	for {
		pkt, isVideo, err := d.ReadPacket()
		if err != nil {
			return nil, err
		}
		if isVideo {
			return pkt, nil
		}
		pkt.Free()
	}
}

// ReadAudioPacket returns the next audio packet, dropping everything else
func (d *Demuxer) ReadAudioPacket() (*astiav.Packet, error) {
	for {
		pkt, _, err := d.ReadPacket()
		if err != nil {
			return nil, err
		}
		if pkt.StreamIndex() == d.audioIdx {
			return pkt, nil
		}
		pkt.Free()
	}
}

// SeekVideo moves to the last keyframe at or before seconds on the video
// stream. Frames between the keyframe and the target must be decoded and
// dropped by the caller.
func (d *Demuxer) SeekVideo(seconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("demuxer closed")
	}
	if d.videoStream == nil {
		return errors.New("no video stream")
	}

	if err := d.formatCtx.SeekFrame(d.videoIdx, d.seekTimestamp(seconds), astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// seekTimestamp converts a position from the stream start into an absolute
// video timestamp.
func (d *Demuxer) seekTimestamp(seconds float64) int64 {
	tb := d.videoTimeBase
	if tb.Num() == 0 {
		return d.videoStart
	}
	return d.videoStart + int64(math.Round(seconds*float64(tb.Den())/float64(tb.Num())))
}

// FrameTime returns the position of a video PTS in seconds from the start of
// the stream.
func (d *Demuxer) FrameTime(pts int64) float64 {
	return d.PTSToSeconds(pts-d.videoStart, true)
}

// PTSToSeconds converts a PTS value to seconds using the appropriate time base
func (d *Demuxer) PTSToSeconds(pts int64, isVideo bool) float64 {
	var tb astiav.Rational
	if isVideo {
		tb = d.videoTimeBase
	} else {
		tb = d.audioTimeBase
	}
	if tb.Den() == 0 {
		return 0
	}
	return float64(pts) * float64(tb.Num()) / float64(tb.Den())
}

// Close releases all resources
func (d *Demuxer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true

	if d.formatCtx != nil {
		d.formatCtx.CloseInput()
		d.formatCtx.Free()
		d.formatCtx = nil
	}
}
