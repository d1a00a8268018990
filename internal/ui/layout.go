package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyreplay/internal/view"
)

type hitTarget int

const (
	targetRegion hitTarget = iota
	targetPlaylist
	targetTrack
)

// hit is a clickable span on one screen row, [x0, x1).
type hit struct {
	target hitTarget
	region view.Region
	index  int
	row    int
	x0, x1 int
}

// fraction maps x onto the span, 0 at the first cell and 1 at the last.
func (h hit) fraction(x int) float64 {
	w := h.x1 - h.x0
	if w <= 1 {
		return 0
	}
	f := float64(x-h.x0) / float64(w-1)
	return min(max(f, 0), 1)
}

// screen is a rendered frame plus the hit map used for mouse dispatch.
type screen struct {
	lines []string
	hits  []hit
}

func (s *screen) add(lines []string, hits []hit) {
	base := len(s.lines)
	for _, h := range hits {
		h.row += base
		s.hits = append(s.hits, h)
	}
	s.lines = append(s.lines, lines...)
}

func (s screen) hitAt(x, y int) (hit, bool) {
	for _, h := range s.hits {
		if h.row == y && x >= h.x0 && x < h.x1 {
			return h, true
		}
	}
	return hit{}, false
}

// rowBuilder writes styled segments while tracking the display column.
type rowBuilder struct {
	b    strings.Builder
	x    int
	row  int
	hits []hit
}

func newRow(row, x int) *rowBuilder {
	r := &rowBuilder{row: row}
	r.pad(x)
	return r
}

func (r *rowBuilder) pad(n int) {
	if n <= 0 {
		return
	}
	r.b.WriteString(strings.Repeat(" ", n))
	r.x += n
}

func (r *rowBuilder) text(s string, style lipgloss.Style) {
	r.b.WriteString(style.Render(s))
	r.x += lipgloss.Width(s)
}

// raw appends pre-styled content whose display width is w.
func (r *rowBuilder) raw(s string, w int) {
	r.b.WriteString(s)
	r.x += w
}

func (r *rowBuilder) region(region view.Region, s string, style lipgloss.Style) {
	start := r.x
	r.text(s, style)
	r.hits = append(r.hits, hit{target: targetRegion, region: region, row: r.row, x0: start, x1: r.x})
}

func (r *rowBuilder) String() string { return r.b.String() }

func centerText(text string, visualWidth int, screenWidth int) string {
	padding := (screenWidth - visualWidth) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat(" ", padding) + text
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
