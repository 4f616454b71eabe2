package export

import (
	"fmt"
	"html"
	"html/template"
	"os"
	"strconv"
	"strings"

	"github.com/njyeung/asciiplay/glyph"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { background: #000; color: #fff; font-family: 'Courier New', monospace; font-size: 8px; line-height: 1; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
#container { text-align: center; }
#frame { white-space: pre; display: inline-block; text-align: left; }
#controls { margin-top: 20px; }
button { padding: 10px 20px; margin: 5px; font-size: 14px; cursor: pointer; }
</style>
</head>
<body>
<div id="container">
<div id="frame"></div>
<div id="controls">
<button onclick="play()">Play</button>
<button onclick="pause()">Pause</button>
<button onclick="stop()">Stop</button>
</div>
</div>
<script>
const frames = {{.Frames}};
const fps = {{.FPS}};
let current = 0;
let timer = null;

function show() {
  document.getElementById('frame').innerHTML = frames[current] || '';
}

function play() {
  if (timer) clearInterval(timer);
  timer = setInterval(function () {
    current = (current + 1) % frames.length;
    show();
  }, 1000 / fps);
  show();
}

function pause() {
  if (timer) clearInterval(timer);
  timer = null;
}

function stop() {
  pause();
  current = 0;
  show();
}

show();
</script>
</body>
</html>
`))

// WriteHTML writes a standalone page that plays frames at fps. Terminal
// colors become inline span styles.
func WriteHTML(frames []string, fps float64, path string) (err error) {
	if fps <= 0 {
		fps = 24
	}

	converted := make([]string, len(frames))
	for i, f := range frames {
		converted[i] = ansiToHTML(f)
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

	data := struct {
		Title  string
		Frames []string
		FPS    float64
	}{"ASCII Video", converted, fps}

	if err := page.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// ansiToHTML converts a rendered frame into escaped HTML, merging runs of the
// same 256-color code into one span.
func ansiToHTML(frame string) string {
	var b strings.Builder
	var run strings.Builder
	color := -1

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if color < 0 {
			b.WriteString(html.EscapeString(run.String()))
		} else {
			r, g, bl := glyph.PaletteRGB(color)
			fmt.Fprintf(&b, `<span style="color:#%02x%02x%02x">%s</span>`, r, g, bl, html.EscapeString(run.String()))
		}
		run.Reset()
	}

	for i := 0; i < len(frame); {
		if frame[i] != 0x1b {
			j := strings.IndexByte(frame[i:], 0x1b)
			if j < 0 {
				j = len(frame) - i
			}
			run.WriteString(frame[i : i+j])
			i += j
			continue
		}

		// SGR: ESC [ params m
		end := strings.IndexByte(frame[i:], 'm')
		if end < 0 || i+1 >= len(frame) || frame[i+1] != '[' {
			i++
			continue
		}
		next := sgrColor(frame[i+2:i+end], color)
		i += end + 1
		if next != color {
			flush()
			color = next
		}
	}
	flush()
	return b.String()
}

// sgrColor returns the foreground color after applying params to cur.
func sgrColor(params string, cur int) int {
	if params == "" || params == "0" {
		return -1
	}
	if rest, ok := strings.CutPrefix(params, "38;5;"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return n
		}
	}
	return cur
}
