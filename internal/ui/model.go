package ui

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/catalog"
	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/player"
	"karolbroda.com/lyreplay/internal/playlist"
	"karolbroda.com/lyreplay/internal/terminal"
	"karolbroda.com/lyreplay/internal/track"
	"karolbroda.com/lyreplay/internal/view"
)

const (
	fetchTimeout = 15 * time.Second
	artworkPx    = 160
)

// Player is the slice of [player.Controller] the TUI drives.
type Player interface {
	view.Commands
	SetListener(fn func(player.EventData))
	State() player.State
	Lyrics() lyrics.Track
	SetTrack(t *track.Track)
	Seek(positionMs int64)
	SetSyncOffset(ms int64)
	SyncOffset() int64
	Poll()
	Close()
}

type Catalog interface {
	TopPlaylists(ctx context.Context) ([]track.PlaylistSummary, error)
	Playlist(ctx context.Context, id string) (track.Playlist, error)
	Search(ctx context.Context, keyword string, kind catalog.SearchType) (catalog.SearchResult, error)
}

type ArtworkLoader interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

type focusArea int

const (
	focusTracks focusArea = iota
	focusPlaylists
	focusSearch
)

type TickMsg time.Time

type PlayerEventMsg struct {
	Event player.EventData
}

type playlistsLoadedMsg struct {
	seq   uint64
	items []track.PlaylistSummary
	err   error
}

type tracksLoadedMsg struct {
	seq      uint64
	playlist track.Playlist
	err      error
}

type artworkLoadedMsg struct {
	trackID string
	img     image.Image
	palette *artwork.Palette
	err     error
}

type Config struct {
	Player  Player
	Catalog Catalog
	// Artwork may be nil, which disables cover loading.
	Artwork         ArtworkLoader
	Logger          *log.Logger
	DefaultPlaylist string
	SeekStep        time.Duration
	VolumeStep      float64
	HideHeader      bool
	ShowArtwork     bool
	TermCaps        terminal.Capabilities
}

type Model struct {
	player  Player
	catalog Catalog
	artwork ArtworkLoader
	logger  *log.Logger
	events  *eventQueue
	nav     *playlist.Navigator

	keys   keyMap
	help   help.Model
	search textinput.Model

	playlists      []track.PlaylistSummary
	playlistCursor int
	trackCursor    int
	playlistsSeq   uint64
	tracksSeq      uint64

	state   player.State
	current *track.Track
	line    lyrics.Cue
	lines   lyrics.Track
	art     image.Image
	palette *artwork.Palette

	defaultPlaylist string
	seekStep        time.Duration
	volumeStep      float64
	hideHeader      bool
	showArtwork     bool
	termCaps        terminal.Capabilities

	focus     focusArea
	anim      AnimState
	tickCount int
	err       error
	width     int
	height    int
	quitting  bool
}

func NewModel(cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	seekStep := cfg.SeekStep
	if seekStep <= 0 {
		seekStep = 5 * time.Second
	}
	volumeStep := cfg.VolumeStep
	if volumeStep <= 0 {
		volumeStep = 0.05
	}

	search := textinput.New()
	search.Placeholder = "search songs and playlists"
	search.Prompt = "/ "
	search.CharLimit = 128

	m := Model{
		player:          cfg.Player,
		catalog:         cfg.Catalog,
		artwork:         cfg.Artwork,
		logger:          logger,
		events:          newEventQueue(),
		nav:             playlist.NewNavigator(),
		keys:            newKeyMap(),
		help:            help.New(),
		search:          search,
		line:            lyrics.Cue{Index: -1},
		palette:         artwork.DefaultPalette(),
		defaultPlaylist: cfg.DefaultPlaylist,
		seekStep:        seekStep,
		volumeStep:      volumeStep,
		hideHeader:      cfg.HideHeader,
		showArtwork:     cfg.ShowArtwork,
		termCaps:        cfg.TermCaps,
		playlistsSeq:    1,
		tracksSeq:       1,
	}
	m.anim.Reset()

	if m.player != nil {
		m.state = m.player.State()
		m.player.SetListener(m.events.push)
	}

	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.player),
		m.listenForPlayerEvents(),
		m.fetchPlaylistsCmd(m.playlistsSeq),
	}
	if m.defaultPlaylist != "" {
		cmds = append(cmds, m.fetchPlaylistCmd(m.tracksSeq, m.defaultPlaylist))
	}
	return tea.Batch(cmds...)
}

// tickCmd polls the player off the update loop so controller events can be
// queued while Update is busy.
func tickCmd(p Player) tea.Cmd {
	return tea.Tick(config.PollInterval, func(t time.Time) tea.Msg {
		if p != nil {
			p.Poll()
		}
		return TickMsg(t)
	})
}

func (m Model) listenForPlayerEvents() tea.Cmd {
	if m.player == nil {
		return nil
	}

	events := m.events
	return func() tea.Msg {
		return PlayerEventMsg{Event: events.next()}
	}
}

func (m Model) fetchPlaylistsCmd(seq uint64) tea.Cmd {
	if m.catalog == nil {
		return nil
	}
	cat := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		items, err := cat.TopPlaylists(ctx)
		return playlistsLoadedMsg{seq: seq, items: items, err: err}
	}
}

func (m Model) fetchPlaylistCmd(seq uint64, id string) tea.Cmd {
	if m.catalog == nil {
		return nil
	}
	cat := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		pl, err := cat.Playlist(ctx, id)
		return tracksLoadedMsg{seq: seq, playlist: pl, err: err}
	}
}

// searchCmd runs the playlist and song searches together; songs become a
// synthetic playlist in the track list.
func (m Model) searchCmd(playlistsSeq, tracksSeq uint64, keyword string) tea.Cmd {
	if m.catalog == nil {
		return nil
	}
	cat := m.catalog
	playlists := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		res, err := cat.Search(ctx, keyword, catalog.SearchPlaylists)
		return playlistsLoadedMsg{seq: playlistsSeq, items: res.Playlists, err: err}
	}
	songs := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		res, err := cat.Search(ctx, keyword, catalog.SearchSongs)
		return tracksLoadedMsg{
			seq:      tracksSeq,
			playlist: track.Playlist{Name: "search: " + keyword, Tracks: res.Tracks},
			err:      err,
		}
	}
	return tea.Batch(playlists, songs)
}

func (m Model) fetchArtworkCmd(t *track.Track) tea.Cmd {
	if m.artwork == nil || t == nil || t.ArtworkURL == "" {
		return nil
	}
	loader := m.artwork
	id, src := t.ID, artwork.SizedURL(t.ArtworkURL, artworkPx)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		img, err := loader.Fetch(ctx, src)
		if err != nil {
			return artworkLoadedMsg{trackID: id, err: err}
		}
		return artworkLoadedMsg{trackID: id, img: img, palette: artwork.ExtractPalette(img)}
	}
}

func (m *Model) resetForNewTrack(t *track.Track) {
	m.current = t
	m.line = lyrics.Cue{Index: -1}
	m.lines = nil
	m.art = nil
	m.palette = artwork.DefaultPalette()
	m.err = nil
	m.anim.Reset()
}

// tree renders the player block for the current snapshot.
func (m Model) tree() view.Tree {
	var cmds view.Commands
	if m.player != nil {
		cmds = m.player
	}
	return view.Render(m.state, m.current, m.line, cmds)
}

func (m Model) Width() int            { return m.width }
func (m Model) Height() int           { return m.height }
func (m Model) Current() *track.Track { return m.current }
func (m Model) State() player.State   { return m.state }
func (m Model) Err() error            { return m.err }
func (m Model) IsQuitting() bool      { return m.quitting }
