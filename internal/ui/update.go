package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyreplay/internal/player"
	"karolbroda.com/lyreplay/internal/track"
)

const syncStepMs = 100

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.search.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		if m.focus == focusSearch {
			return m.handleSearchKey(msg)
		}
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case PlayerEventMsg:
		return m.handlePlayerEvent(msg.Event)

	case playlistsLoadedMsg:
		return m.handlePlaylistsLoaded(msg)

	case tracksLoadedMsg:
		return m.handleTracksLoaded(msg)

	case artworkLoadedMsg:
		return m.handleArtworkLoaded(msg)

	case TickMsg:
		return m.handleTick()
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()

	case "esc":
		m.search.Blur()
		m.focus = focusTracks
		return m, nil

	case "tab":
		m.search.Blur()
		m.focus = focusTracks
		return m, nil

	case "enter":
		keyword := strings.TrimSpace(m.search.Value())
		m.search.Blur()
		m.focus = focusTracks
		if keyword == "" {
			return m, nil
		}
		m.playlistsSeq++
		m.tracksSeq++
		return m, m.searchCmd(m.playlistsSeq, m.tracksSeq, keyword)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	switch {
	case key.Matches(msg, k.quit):
		return m.quit()

	case key.Matches(msg, k.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, k.header):
		m.hideHeader = !m.hideHeader
		return m, nil

	case key.Matches(msg, k.search):
		m.focus = focusSearch
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, k.focus):
		if m.focus == focusTracks && !m.hideHeader {
			m.focus = focusPlaylists
		} else {
			m.focus = focusTracks
		}
		return m, nil

	case key.Matches(msg, k.up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, k.down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, k.enter):
		return m.selectFocused()

	case key.Matches(msg, k.back):
		m.focus = focusTracks
		return m, nil
	}

	if m.player == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, k.playPause):
		m.player.TogglePlay()

	case key.Matches(msg, k.next):
		m.player.Next()

	case key.Matches(msg, k.prev):
		m.player.Prev()

	case key.Matches(msg, k.mute):
		m.player.ToggleMute()

	case key.Matches(msg, k.seekBack):
		m.player.Seek(m.player.State().CurrentTimeMs - m.seekStep.Milliseconds())

	case key.Matches(msg, k.seekFwd):
		m.player.Seek(m.player.State().CurrentTimeMs + m.seekStep.Milliseconds())

	case key.Matches(msg, k.volumeUp):
		m.player.SetVolume(m.player.State().Volume + m.volumeStep)

	case key.Matches(msg, k.volumeDown):
		m.player.SetVolume(m.player.State().Volume - m.volumeStep)

	case key.Matches(msg, k.lyricSoon):
		m.player.SetSyncOffset(m.player.SyncOffset() + syncStepMs)

	case key.Matches(msg, k.lyricLater):
		m.player.SetSyncOffset(m.player.SyncOffset() - syncStepMs)

	case key.Matches(msg, k.lyricReset):
		m.player.SetSyncOffset(0)

	default:
		return m, nil
	}

	m.state = m.player.State()
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.player != nil {
		m.player.Close()
	}
	return m, tea.Quit
}

func (m *Model) moveCursor(delta int) {
	switch m.focus {
	case focusPlaylists:
		m.playlistCursor = clampIndex(m.playlistCursor+delta, len(m.playlists))
	default:
		m.trackCursor = clampIndex(m.trackCursor+delta, m.nav.Len())
	}
}

func (m Model) selectFocused() (tea.Model, tea.Cmd) {
	if m.focus == focusPlaylists {
		return m.openPlaylist(m.playlistCursor)
	}
	return m.playIndex(m.trackCursor)
}

func (m Model) openPlaylist(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.playlists) {
		return m, nil
	}
	m.playlistCursor = i
	m.focus = focusTracks
	m.tracksSeq++
	return m, m.fetchPlaylistCmd(m.tracksSeq, m.playlists[i].ID)
}

func (m Model) playIndex(i int) (tea.Model, tea.Cmd) {
	t, ok := m.nav.Select(i)
	if !ok {
		return m, nil
	}
	m.trackCursor = i
	return m.play(t)
}

func (m Model) play(t track.Track) (tea.Model, tea.Cmd) {
	if m.player == nil {
		return m, nil
	}
	m.player.SetTrack(&t)
	m.state = m.player.State()
	return m, nil
}

func (m Model) handlePlayerEvent(event player.EventData) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.listenForPlayerEvents()}
	m.state = event.State

	switch event.Type {
	case player.EventTrackChanged:
		m.resetForNewTrack(event.Track)
		cmds = append(cmds, m.fetchArtworkCmd(event.Track))

	case player.EventLineChanged:
		m.line = event.Line
		m.lines = m.player.Lyrics()
		m.anim.Update(m.tickCount, true)

	case player.EventStateChanged:
		if len(m.lines) == 0 && m.current != nil {
			m.lines = m.player.Lyrics()
		}

	case player.EventLoadFailed:
		m.err = event.Err
		m.logger.Warn("playback failed", "err", event.Err)

	case player.EventNextRequested:
		if t, ok := m.nav.Next(); ok {
			m.trackCursor = m.nav.Index()
			m.player.SetTrack(&t)
		}

	case player.EventPrevRequested:
		if t, ok := m.nav.Prev(); ok {
			m.trackCursor = m.nav.Index()
			m.player.SetTrack(&t)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handlePlaylistsLoaded(msg playlistsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.playlistsSeq {
		return m, nil
	}
	if msg.err != nil {
		m.err = msg.err
		m.logger.Warn("failed to load playlists", "err", msg.err)
		return m, nil
	}
	m.playlists = msg.items
	m.playlistCursor = 0
	return m, nil
}

func (m Model) handleTracksLoaded(msg tracksLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.tracksSeq {
		return m, nil
	}
	if msg.err != nil {
		m.err = msg.err
		m.logger.Warn("failed to load playlist", "err", msg.err)
		return m, nil
	}
	m.nav.Load(msg.playlist)
	m.trackCursor = 0
	m.err = nil
	return m, nil
}

func (m Model) handleArtworkLoaded(msg artworkLoadedMsg) (tea.Model, tea.Cmd) {
	if m.current == nil || msg.trackID != m.current.ID {
		return m, nil
	}
	if msg.err != nil {
		m.logger.Debug("artwork unavailable", "track", msg.trackID, "err", msg.err)
		return m, nil
	}
	m.art = msg.img
	if msg.palette != nil {
		m.palette = msg.palette
	}
	return m, nil
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.tickCount++
	if m.player != nil {
		m.state = m.player.State()
	}
	m.anim.Update(m.tickCount, false)
	return m, tickCmd(m.player)
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	h, ok := m.layout().hitAt(msg.X, msg.Y)
	if !ok {
		return m, nil
	}

	switch h.target {
	case targetPlaylist:
		m.focus = focusPlaylists
		return m.openPlaylist(h.index)
	case targetTrack:
		m.focus = focusTracks
		return m.playIndex(h.index)
	}

	if m.tree().Dispatch(h.region, h.fraction(msg.X)) && m.player != nil {
		m.state = m.player.State()
	}
	return m, nil
}

func clampIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return min(max(i, 0), n-1)
}
