package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/media"
)

func main() {
	var (
		frame int
		width int
	)

	cmd := &cobra.Command{
		Use:   "probe <file>...",
		Short: "Print video metadata and optionally render one frame",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := probe(path); err != nil {
					return err
				}
				if frame >= 0 {
					if err := renderFrame(path, frame, width); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&frame, "frame", -1, "render this frame index")
	cmd.Flags().IntVar(&width, "width", 80, "render width in characters")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func probe(path string) error {
	d, err := media.NewDemuxer(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer d.Close()

	fps := d.FrameRate()
	frames := d.FrameCount(fps)

	fmt.Printf("%s\n", path)
	if !d.HasVideo() {
		fmt.Println("  video:    none")
	} else {
		p := d.VideoCodecParameters()
		fmt.Printf("  video:    %s %dx%d\n", p.CodecID(), p.Width(), p.Height())
		fmt.Printf("  fps:      %.3f\n", fps)
		fmt.Printf("  frames:   %d\n", frames)
		if fps > 0 && frames > 0 {
			dur := time.Duration(float64(frames) / fps * float64(time.Second))
			fmt.Printf("  duration: %s\n", dur.Round(time.Millisecond))
		}
	}
	if d.HasAudio() {
		p := d.AudioCodecParameters()
		fmt.Printf("  audio:    %s %d Hz\n", p.CodecID(), p.SampleRate())
	} else {
		fmt.Println("  audio:    none")
	}
	return nil
}

func renderFrame(path string, index, width int) error {
	src := media.NewVideoSource()
	if _, err := src.Open(path); err != nil {
		return err
	}
	defer src.Close()

	if err := src.Seek(index); err != nil {
		return fmt.Errorf("failed to seek to frame %d: %w", index, err)
	}
	r, n, err := src.ReadFrame()
	if err != nil {
		return fmt.Errorf("failed to read frame %d: %w", index, err)
	}

	charset, err := glyph.Charset(glyph.DefaultCharset)
	if err != nil {
		return err
	}
	fmt.Printf("\nframe %d (%dx%d)\n", n, r.Width, r.Height)
	fmt.Println(glyph.Render(r, glyph.Options{
		Width:   width,
		Charset: charset,
		Aspect:  0.45,
		Color:   true,
	}))
	return nil
}
