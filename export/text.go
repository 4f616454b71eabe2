package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// WriteText writes frames as numbered plain-text blocks. A path ending in
// ".zst" is zstd compressed.
func WriteText(frames []string, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return writeText(f, frames)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if err := writeText(enc, frames); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

func writeText(w io.Writer, frames []string) error {
	bw := bufio.NewWriter(w)
	for i, frame := range frames {
		fmt.Fprintf(bw, "=== Frame %d ===\n", i+1)
		bw.WriteString(frame)
		bw.WriteString("\n\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write frames: %w", err)
	}
	return nil
}
