// Package colors does the hex-color math behind the player's artwork-derived
// theme. Interpolation happens in LCh so gradients stay perceptually even.
package colors

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

const fallbackHex = "#FFFFFF"

func parse(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(fallbackHex)
	}
	return c
}

// Gradient returns steps colors from start to end, both included.
func Gradient(start, end string, steps int) []string {
	if steps < 2 {
		steps = 2
	}
	a, b := parse(start), parse(end)

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		out[i] = a.BlendLuvLCh(b, t).Clamped().Hex()
	}
	return out
}

// MultiGradient chains Gradient through every stop.
func MultiGradient(stops []string, steps int) []string {
	switch {
	case len(stops) == 0:
		return []string{fallbackHex}
	case len(stops) == 1 || steps < 2:
		return []string{stops[0]}
	}

	segments := len(stops) - 1
	per := max(steps/segments, 1)
	out := make([]string, 0, steps)
	for i := 0; i < segments; i++ {
		n := per
		if i == segments-1 {
			n = max(steps-len(out), 1)
		}
		seg := Gradient(stops[i], stops[i+1], n+1)
		if i > 0 {
			seg = seg[1:]
		}
		out = append(out, seg...)
	}
	return out
}

// Roughness is the largest CIEDE2000 step between neighbouring colors of a
// gradient. Smaller is smoother.
func Roughness(start, end string, steps int) float64 {
	grad := Gradient(start, end, steps)
	worst := 0.0
	for i := 1; i < len(grad); i++ {
		if d := parse(grad[i-1]).DistanceCIEDE2000(parse(grad[i])); d > worst {
			worst = d
		}
	}
	return worst
}

// Lightness is the perceptual lightness of hex on a 0-100 scale.
func Lightness(hex string) float64 {
	l, _, _ := parse(hex).Lab()
	return l * 100
}

func Blend(a, b string, t float64) string {
	return parse(a).BlendLuvLCh(parse(b), clamp01(t)).Clamped().Hex()
}

// Brighten scales HSL lightness by factor; factors below 1 darken.
func Brighten(hex string, factor float64) string {
	h, s, l := parse(hex).Hsl()
	return colorful.Hsl(h, s, clamp01(l*factor)).Clamped().Hex()
}

func Desaturate(hex string, amount float64) string {
	h, s, l := parse(hex).Hsl()
	return colorful.Hsl(h, clamp01(s*(1-amount)), l).Clamped().Hex()
}

// Glow lifts a color toward white by intensity in [0,1].
func Glow(hex string, intensity float64) string {
	return Blend(hex, fallbackHex, intensity*0.5)
}

func RGB(hex string) (uint8, uint8, uint8) {
	return parse(hex).RGB255()
}

// GradientText colors each rune of text with the gradient stretched across
// the whole string.
func GradientText(text string, gradient []string, bold bool) string {
	if text == "" || len(gradient) == 0 {
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		idx := 0
		if len(runes) > 1 {
			idx = i * (len(gradient) - 1) / (len(runes) - 1)
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[idx])).Bold(bold)
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
