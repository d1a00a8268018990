// Package terminal covers the few raw escape sequences the TUI needs outside
// of bubbletea: graphics protocol output and restoring state after a crash.
package terminal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"
)

const (
	kittyChunk = 4096
	cellWidth  = 10
	cellHeight = 20
)

type Capabilities struct {
	KittyGraphics bool
	TermProgram   string
}

// DetectCapabilities reads the environment. Kitty graphics are opt-in
// through LYREPLAY_USE_KITTY_GRAPHICS since detection over the pty is
// unreliable inside multiplexers.
func DetectCapabilities() Capabilities {
	return detect(os.Getenv)
}

func detect(getenv func(string) string) Capabilities {
	caps := Capabilities{TermProgram: getenv("TERM_PROGRAM")}

	switch strings.ToLower(getenv("LYREPLAY_USE_KITTY_GRAPHICS")) {
	case "1", "true", "yes", "on":
		caps.KittyGraphics = true
		if caps.TermProgram == "" {
			caps.TermProgram = "kitty"
		}
	}
	return caps
}

// Reset shows the cursor, leaves the alt screen and turns off mouse
// reporting.
func Reset(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	for _, seq := range []string{"\033[?25h", "\033[0m", "\033[?1049l", "\033[?1000l", "\033[?1002l", "\033[?1003l", "\033[?1006l"} {
		io.WriteString(w, seq)
	}
	if f, ok := w.(*os.File); ok {
		f.Sync()
	}
}

// KittyImage encodes img as a kitty graphics transmit-and-display command
// sized to cols x rows cells, keeping the aspect ratio.
func KittyImage(img image.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}

	w, h := float64(cols*cellWidth), float64(rows*cellHeight)
	aspect := float64(b.Dx()) / float64(b.Dy())
	if aspect > w/h {
		h = w / aspect
	} else {
		w = h * aspect
	}

	resized := resize.Resize(uint(max(w, 10)), uint(max(h, 10)), img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return ""
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	for i := 0; i < len(encoded); i += kittyChunk {
		end := min(i+kittyChunk, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}
		if i == 0 {
			fmt.Fprintf(&out, "\x1b_Ga=T,f=100,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, encoded[i:end])
		} else {
			fmt.Fprintf(&out, "\x1b_Gm=%d;%s\x1b\\", more, encoded[i:end])
		}
	}
	return out.String()
}
