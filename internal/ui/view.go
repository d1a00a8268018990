package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/colors"
	"karolbroda.com/lyreplay/internal/player"
	"karolbroda.com/lyreplay/internal/terminal"
	"karolbroda.com/lyreplay/internal/view"
)

const (
	indent       = 2
	artWidth     = 8
	artHeight    = 4
	volumeBarW   = 10
	lyricPanelH  = 5
	minListH     = 3
	errorColor   = "#FF6B6B"
	defaultWidth = 80
	defaultH     = 24
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return strings.Join(m.layout().lines, "\n")
}

func (m Model) size() (int, int) {
	width, height := m.width, m.height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultH
	}
	return width, height
}

// layout renders the whole frame top to bottom: header, track list, lyrics,
// player block and footer. The track list absorbs the leftover height.
func (m Model) layout() screen {
	width, height := m.size()
	p := m.palette
	if p == nil {
		p = artwork.DefaultPalette()
	}

	var s screen
	if !m.hideHeader {
		s.add(m.renderHeader(p, width))
	}

	playerLines, playerHits := m.renderPlayer(p, width)
	footer := m.renderFooter(p, width)

	lyricH := lyricPanelH
	if height < 20 {
		lyricH = 3
	}
	listH := height - len(s.lines) - len(playerLines) - lyricH - len(footer)
	if listH >= minListH {
		s.add(m.renderTracks(p, width, listH))
	}

	s.add(m.renderLyrics(p, width, lyricH), nil)
	s.add(playerLines, playerHits)
	s.add(footer, nil)

	for len(s.lines) < height {
		s.lines = append(s.lines, "")
	}
	if len(s.lines) > height {
		s.lines = s.lines[:height]
	}
	return s
}

func (m Model) renderHeader(p *artwork.Palette, width int) ([]string, []hit) {
	search := m.search.View()
	if m.focus != focusSearch && m.search.Value() == "" {
		search = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim)).Render("/ search songs and playlists")
	}

	strip := newRow(1, indent)
	if len(m.playlists) == 0 {
		strip.text("loading playlists…", lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim)).Italic(true))
	}

	start := max(0, m.playlistCursor-1)
	for i := start; i < len(m.playlists); i++ {
		label := truncate(m.playlists[i].Name, 24)
		w := lipgloss.Width(label)
		if strip.x+w > width {
			break
		}

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim))
		if i == m.playlistCursor {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Primary))
			if m.focus == focusPlaylists {
				style = style.Bold(true).Underline(true)
			}
		}

		x0 := strip.x
		strip.text(label, style)
		strip.hits = append(strip.hits, hit{target: targetPlaylist, index: i, row: strip.row, x0: x0, x1: strip.x})
		strip.pad(3)
	}

	return []string{strings.Repeat(" ", indent) + search, strip.String(), ""}, strip.hits
}

func (m Model) renderTracks(p *artwork.Palette, width int, height int) ([]string, []hit) {
	pl := m.nav.Playlist()
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim))

	lines := make([]string, 0, height)
	title := pl.Name
	if title == "" {
		title = "playlist"
	}
	lines = append(lines, strings.Repeat(" ", indent)+
		lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Bold(true).Render(truncate(title, width-20))+
		dim.Render(fmt.Sprintf(" · %d tracks", len(pl.Tracks))))

	rows := height - 1
	if len(pl.Tracks) == 0 {
		lines = append(lines, strings.Repeat(" ", indent)+dim.Render("no tracks"))
		return lines, nil
	}

	start := min(max(m.trackCursor-rows/2, 0), max(len(pl.Tracks)-rows, 0))
	var hits []hit
	for i := start; i < len(pl.Tracks) && len(lines) < height; i++ {
		t := pl.Tracks[i]
		playing := m.current != nil && m.nav.Index() == i && m.current.ID == t.ID

		marker := " "
		switch {
		case playing:
			marker = "♪"
		case i == m.trackCursor && m.focus == focusTracks:
			marker = "›"
		}

		titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Secondary))
		if playing {
			titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Primary)).Bold(true)
		}
		if i == m.trackCursor && m.focus == focusTracks {
			titleStyle = titleStyle.Underline(true)
		}

		row := newRow(len(lines), 0)
		row.text(fmt.Sprintf("%s%3d  ", marker, i+1), dim)

		dur := view.FormatTime(t.DurationMs)
		avail := width - row.x - lipgloss.Width(dur) - indent - 2
		name := truncate(t.Title, avail)
		row.text(name, titleStyle)
		if rest := avail - lipgloss.Width(name) - 2; rest > 4 {
			row.pad(2)
			row.text(truncate(t.Subtitle(), rest), dim)
		}
		row.pad(width - indent - lipgloss.Width(dur) - row.x)
		row.text(dur, dim)

		lines = append(lines, row.String())
		hits = append(hits, hit{target: targetTrack, index: i, row: row.row, x0: 0, x1: width})
	}
	return lines, hits
}

// renderLyrics centers the active line and shows its neighbours dimmed.
func (m Model) renderLyrics(p *artwork.Palette, width int, height int) []string {
	out := make([]string, height)
	mid := height / 2
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim))

	if m.current == nil {
		out[mid] = centerText(dim.Italic(true).Render("awaiting music"), 14, width)
		return out
	}
	if len(m.lines) == 0 {
		out[mid] = centerText(dim.Render("♪"), 1, width)
		return out
	}

	for row := range out {
		i := m.line.Index + row - mid
		if i < 0 || i >= len(m.lines) {
			continue
		}

		text := m.lines[i].Text
		if strings.TrimSpace(text) == "" {
			text = "···"
		}
		text = truncate(text, width-2*indent)
		w := lipgloss.Width(text)

		if i == m.line.Index {
			out[row] = centerText(m.renderFocusLyric(text, p), w, width)
			continue
		}

		dist := max(row-mid, mid-row)
		brightness := max(0.6-0.2*float64(dist-1), 0.2)
		color := colors.Blend(p.Dim, p.Secondary, brightness)
		out[row] = centerText(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text), w, width)
	}
	return out
}

func (m Model) renderFocusLyric(text string, p *artwork.Palette) string {
	runes := []rune(text)
	shown := string(runes[:min(m.anim.Revealed(len(runes)), len(runes))])

	grad := p.Gradient
	if len(grad) == 0 {
		grad = []string{p.Primary}
	}
	shift := int(m.anim.Shimmer) % len(grad)
	shifted := make([]string, len(grad))
	for i := range grad {
		c := grad[(i+shift)%len(grad)]
		if m.anim.Glow > 0 {
			c = colors.Glow(c, m.anim.Glow)
		}
		shifted[i] = c
	}

	pad := lipgloss.Width(text) - lipgloss.Width(shown)
	return colors.GradientText(shown, shifted, true) + strings.Repeat(" ", max(pad, 0))
}

// renderPlayer draws the view tree: artwork on the left, then title, artist,
// transport and volume controls, and the progress bar.
func (m Model) renderPlayer(p *artwork.Palette, width int) ([]string, []hit) {
	tree := m.tree()
	if tree.Empty() {
		return []string{"", "", ""}, nil
	}
	find := func(class string) view.Node {
		n, _ := tree.Root.Find(class)
		return n
	}

	var (
		prefix  []string
		artCols []string
		x0      = indent
	)
	if art := find("player-artwork"); m.showArtwork && art.Src != "" && m.art != nil && width >= 60 {
		if m.termCaps.KittyGraphics {
			if img := terminal.KittyImage(m.art, artWidth, artHeight); img != "" {
				prefix = append(prefix, strings.Repeat(" ", indent)+img)
				for range artHeight - 1 {
					prefix = append(prefix, "")
				}
			}
		}
		if prefix == nil {
			artCols = artwork.RenderHalfBlock(m.art, artWidth, artHeight)
			if artCols != nil {
				x0 += artWidth + 2
			}
		}
	}

	primaryColor := p.Primary
	if m.state.Status == player.StatusPaused {
		primaryColor = colors.Desaturate(primaryColor, 0.6)
	}
	primary := lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))
	secondary := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Secondary))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim))

	base := len(prefix)
	avail := max(width-x0-indent, 10)

	title := newRow(base, x0)
	title.text(truncate(find("player-title").Text, avail), primary.Bold(true))

	artist := newRow(base+1, x0)
	artist.text(truncate(find("player-artist").Text, avail), secondary)

	controls := newRow(base+2, x0)
	enabled := map[string]bool{
		"player-prev": m.nav.HasPrev(),
		"player-play": true,
		"player-next": m.nav.HasNext(),
	}
	for _, class := range []string{"player-prev", "player-play", "player-next"} {
		n := find(class)
		style := accent
		if !enabled[class] {
			style = dim
		}
		controls.region(n.Region, n.Text, style)
		controls.pad(2)
	}
	controls.pad(2)
	icon := find("volume-icon")
	controls.region(icon.Region, icon.Text, secondary)
	controls.pad(1)
	vol := find("volume-bar")
	start := controls.x
	controls.raw(renderBar(vol.Value, volumeBarW, p, false), volumeBarW)
	controls.hits = append(controls.hits, hit{target: targetRegion, region: vol.Region, row: controls.row, x0: start, x1: controls.x})
	controls.pad(1)
	controls.text(find("volume-percentage").Text, dim)

	progress := newRow(base+3, x0)
	cur, dur := find("current-time").Text, find("duration").Text
	progress.text(cur, dim)
	progress.pad(1)
	bar := find("progress-bar")
	barW := max(avail-lipgloss.Width(cur)-lipgloss.Width(dur)-2, 10)
	start = progress.x
	progress.raw(renderBar(bar.Value, barW, p, true), barW)
	progress.hits = append(progress.hits, hit{target: targetRegion, region: bar.Region, row: progress.row, x0: start, x1: progress.x})
	progress.pad(1)
	progress.text(dur, dim)

	rows := []*rowBuilder{title, artist, controls, progress}
	lines := append([]string{}, prefix...)
	var hits []hit
	for i, r := range rows {
		line := r.String()
		if artCols != nil {
			cell := strings.Repeat(" ", artWidth)
			if i < len(artCols) {
				cell = artCols[i]
			}
			line = strings.Repeat(" ", indent) + cell + "  " + strings.TrimPrefix(line, strings.Repeat(" ", x0))
		}
		lines = append(lines, line)
		hits = append(hits, r.hits...)
	}
	lines = append(lines, "")
	return lines, hits
}

func renderBar(value float64, width int, p *artwork.Palette, knob bool) string {
	filled := int(float64(width) * min(max(value, 0), 1))
	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Primary))
	empty := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim)).Faint(true)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case knob && i == filled:
			b.WriteString(fill.Render("●"))
		case i < filled:
			b.WriteString(fill.Render("━"))
		default:
			b.WriteString(empty.Render("─"))
		}
	}
	return b.String()
}

func (m Model) renderFooter(p *artwork.Palette, width int) []string {
	var status string
	switch {
	case m.err != nil:
		status = lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor)).Render(truncate(m.err.Error(), width-2*indent))
	case m.player != nil && m.player.SyncOffset() != 0:
		status = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim)).
			Render(fmt.Sprintf("sync %+.1fs", float64(m.player.SyncOffset())/1000))
	}

	lines := []string{strings.Repeat(" ", indent) + status}
	for _, l := range strings.Split(m.help.View(m.keys), "\n") {
		lines = append(lines, strings.Repeat(" ", indent)+l)
	}
	return lines
}
