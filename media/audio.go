package media

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/njyeung/asciiplay/player"
)

// AudioSampleRate for resampling
const AudioSampleRate = 44100

// s16le stereo
const bytesPerSample = 4

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker opens the audio device once per process with a 50ms buffer.
func initSpeaker() error {
	speakerOnce.Do(func() {
		sr := beep.SampleRate(AudioSampleRate)
		speakerErr = speaker.Init(sr, sr.N(50*time.Millisecond))
	})
	return speakerErr
}

// AudioPlayer decodes a whole audio track up front and plays it from any
// offset. It implements player.Audio.
type AudioPlayer struct {
	mu      sync.Mutex
	pcm     []byte // s16le stereo at AudioSampleRate
	volume  float64
	current *effects.Volume
	closed  bool
}

// NewAudioPlayer creates a player at full volume
func NewAudioPlayer() *AudioPlayer {
	return &AudioPlayer{volume: 1}
}

// Load decodes the audio track of path. Errors wrap player.ErrAudioLoadFailed.
func (a *AudioPlayer) Load(path string) error {
	a.Stop()

	if err := initSpeaker(); err != nil {
		return fmt.Errorf("%w: failed to open audio device: %w", player.ErrAudioLoadFailed, err)
	}

	pcm, err := decodeAudio(path)
	if err != nil {
		return fmt.Errorf("%w: %w", player.ErrAudioLoadFailed, err)
	}

	a.mu.Lock()
	a.pcm = pcm
	a.mu.Unlock()
	return nil
}

// Play starts playback at from, replacing anything already playing
func (a *AudioPlayer) Play(from time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || len(a.pcm) == 0 {
		return
	}

	pos := int(from.Seconds()*AudioSampleRate) * bytesPerSample
	pos = min(max(pos, 0), len(a.pcm))

	a.current = &effects.Volume{
		Streamer: &pcmStreamer{buf: a.pcm[pos:]},
		Base:     2,
	}
	applyVolume(a.current, a.volume)

	speaker.Clear()
	speaker.Play(a.current)
}

// Stop halts playback
func (a *AudioPlayer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		speaker.Clear()
		a.current = nil
	}
}

// SetVolume sets a linear volume in [0, 1]
func (a *AudioPlayer) SetVolume(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.volume = min(max(v, 0), 1)
	if a.current != nil {
		speaker.Lock()
		applyVolume(a.current, a.volume)
		speaker.Unlock()
	}
}

// applyVolume maps a linear volume onto beep's exponential one.
func applyVolume(vol *effects.Volume, v float64) {
	vol.Silent = v <= 0
	if v > 0 {
		vol.Volume = math.Log2(v)
	}
}

// Close releases all resources
func (a *AudioPlayer) Close() {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.pcm = nil
}

// pcmStreamer implements beep.Streamer over decoded s16le stereo samples
type pcmStreamer struct {
	buf []byte
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if len(s.buf) < bytesPerSample {
		return 0, false
	}

	// buf (raw bytes from FFmpeg):
	// ┌────┬────┬────┬────┬────┬────┬────┬────┬─...
	// │ L0 │ L0 │ R0 │ R0 │ L1 │ L1 │ R1 │ R1 │
	// │ lo │ hi │ lo │ hi │ lo │ hi │ lo │ hi │
	// └────┴────┴────┴────┴────┴────┴────┴────┴─...
	for n < len(samples) && len(s.buf) >= bytesPerSample {
		left := int16(s.buf[0]) | int16(s.buf[1])<<8
		right := int16(s.buf[2]) | int16(s.buf[3])<<8
		samples[n][0] = float64(left) / math.MaxInt16
		samples[n][1] = float64(right) / math.MaxInt16
		s.buf = s.buf[bytesPerSample:]
		n++
	}
	return n, true
}

func (s *pcmStreamer) Err() error {
	return nil
}

// decodeAudio decodes the first audio stream of path into s16le stereo.
func decodeAudio(path string) ([]byte, error) {
	d, err := NewDemuxer(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if !d.HasAudio() {
		return nil, errors.New("no audio stream found")
	}

	dec, err := newAudioDecoder(d.AudioCodecParameters())
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	for {
		pkt, err := d.ReadAudioPacket()
		if errors.Is(err, astiav.ErrEof) {
			// drain
			if err := dec.decode(nil); err != nil {
				return nil, err
			}
			dec.flush()
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audio packet: %w", err)
		}

		err = dec.decode(pkt)
		pkt.Free()
		if err != nil {
			return nil, err
		}
	}

	if len(dec.pcm) == 0 {
		return nil, errors.New("audio stream decoded to no samples")
	}
	return dec.pcm, nil
}

// frameConverter is the part of the resampler audioDecoder uses. A nil
// source frame drains buffered samples.
type frameConverter interface {
	ConvertFrame(src, dst *astiav.Frame) error
}

const (
	flushSamples   = 4096
	maxFlushRounds = 8
)

type audioDecoder struct {
	codecCtx *astiav.CodecContext
	swrCtx   *astiav.SoftwareResampleContext
	swr      frameConverter
	frame    *astiav.Frame
	pcm      []byte
	log      *slog.Logger

	converted bool // the resampler has been configured by a frame
	dropped   int
}

func newAudioDecoder(codecParams *astiav.CodecParameters) (*audioDecoder, error) {
	a := &audioDecoder{log: slog.Default()}

	codec := astiav.FindDecoder(codecParams.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("audio codec not found: %s", codecParams.CodecID())
	}

	a.codecCtx = astiav.AllocCodecContext(codec)
	if a.codecCtx == nil {
		return nil, fmt.Errorf("failed to allocate audio codec context")
	}

	if err := codecParams.ToCodecContext(a.codecCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to copy audio codec params: %w", err)
	}

	if err := a.codecCtx.Open(codec, nil); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open audio codec: %w", err)
	}

	a.frame = astiav.AllocFrame()

	// Resampler is configured from the first frame
	a.swrCtx = astiav.AllocSoftwareResampleContext()
	if a.swrCtx == nil {
		a.Close()
		return nil, fmt.Errorf("failed to allocate swr context")
	}
	a.swr = a.swrCtx

	return a, nil
}

// decode sends pkt (nil to drain) and appends every resampled frame to pcm.
func (a *audioDecoder) decode(pkt *astiav.Packet) error {
	if err := a.codecCtx.SendPacket(pkt); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("failed to send audio packet: %w", err)
	}

	for {
		if err := a.codecCtx.ReceiveFrame(a.frame); err != nil {
			if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
				return nil
			}
			return fmt.Errorf("failed to receive audio frame: %w", err)
		}
		a.resample()
		a.frame.Unref()
	}
}

func (a *audioDecoder) resample() {
	// room for upsampling plus resampler delay
	nb := a.frame.NbSamples()
	if in := a.frame.SampleRate(); in > 0 {
		nb = nb*AudioSampleRate/in + 32
	}

	if _, err := a.convert(a.frame, nb); err != nil {
		a.dropped++
		a.log.Debug("media: audio frame dropped", "pts", a.frame.Pts(), "err", err)
		return
	}
	a.converted = true
}

// flush drains the samples the resampler still holds once decoding is done.
func (a *audioDecoder) flush() {
	if !a.converted {
		return
	}
	for i := 0; i < maxFlushRounds; i++ {
		n, err := a.convert(nil, flushSamples)
		if err != nil {
			a.log.Debug("media: failed to flush resampler", "err", err)
			return
		}
		if n == 0 {
			return
		}
	}
}

// convert resamples in (nil to drain) into at most nb s16 stereo samples,
// appends them to pcm and returns how many were produced.
func (a *audioDecoder) convert(in *astiav.Frame, nb int) (int, error) {
	out := astiav.AllocFrame()
	defer out.Free()

	out.SetSampleFormat(astiav.SampleFormatS16)
	out.SetSampleRate(AudioSampleRate)
	out.SetChannelLayout(astiav.ChannelLayoutStereo)
	out.SetNbSamples(nb)

	if err := out.AllocBuffer(0); err != nil {
		return 0, fmt.Errorf("failed to allocate resample buffer: %w", err)
	}
	if err := a.swr.ConvertFrame(in, out); err != nil {
		return 0, fmt.Errorf("failed to resample: %w", err)
	}

	// plane 0 for interleaved S16
	n := out.NbSamples()
	if n <= 0 {
		return 0, nil
	}
	plane, err := out.Data().Bytes(0)
	if err != nil {
		return 0, fmt.Errorf("failed to read resampled samples: %w", err)
	}
	byteSize := n * bytesPerSample
	if len(plane) < byteSize {
		return 0, fmt.Errorf("resampled plane holds %d bytes, expected %d", len(plane), byteSize)
	}
	a.pcm = append(a.pcm, plane[:byteSize]...)
	return n, nil
}

// Close releases all resources
func (a *audioDecoder) Close() {
	if a.frame != nil {
		a.frame.Free()
		a.frame = nil
	}
	if a.swrCtx != nil {
		a.swrCtx.Free()
		a.swrCtx = nil
	}
	if a.codecCtx != nil {
		a.codecCtx.Free()
		a.codecCtx = nil
	}
}
