package catalog

import (
	"strconv"

	"karolbroda.com/lyreplay/internal/track"
)

type SearchType int

const (
	SearchSongs     SearchType = 1
	SearchAlbums    SearchType = 10
	SearchPlaylists SearchType = 1000
)

func ParseSearchType(s string) (SearchType, bool) {
	switch s {
	case "song", "songs", "1", "":
		return SearchSongs, true
	case "album", "albums", "10":
		return SearchAlbums, true
	case "playlist", "playlists", "1000":
		return SearchPlaylists, true
	}
	return 0, false
}

func (t SearchType) String() string {
	switch t {
	case SearchSongs:
		return "songs"
	case SearchAlbums:
		return "albums"
	case SearchPlaylists:
		return "playlists"
	default:
		return "unknown"
	}
}

type SearchResult struct {
	Tracks    []track.Track
	Albums    []track.Album
	Playlists []track.PlaylistSummary
}

type Category struct {
	ID   int64
	Name string
}

// LyricDocument holds every lyric layer the catalog returns. Only Original
// is time-synced LRC in practice; Translation usually is too.
type LyricDocument struct {
	Original    string
	Translation string
	Karaoke     string
}

type envelope struct {
	Code int `json:"code"`
}

type artistJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type albumJSON struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	PicURL      string     `json:"picUrl"`
	BlurPicURL  string     `json:"blurPicUrl"`
	Artist      artistJSON `json:"artist"`
	CoverImgURL string     `json:"coverImgUrl"`
}

// songJSON covers both shapes: playlist tracks use ar/al/dt, search results
// use artists/album/duration.
type songJSON struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Ar       []artistJSON `json:"ar"`
	Al       *albumJSON   `json:"al"`
	Dt       int64        `json:"dt"`
	Artists  []artistJSON `json:"artists"`
	Album    *albumJSON   `json:"album"`
	Duration int64        `json:"duration"`
}

type playlistJSON struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	CoverImgURL string     `json:"coverImgUrl"`
	TrackCount  int        `json:"trackCount"`
	Creator     *userJSON  `json:"creator"`
	Tracks      []songJSON `json:"tracks"`
}

type userJSON struct {
	Nickname string `json:"nickname"`
}

type playlistsResponse struct {
	envelope
	Playlists []playlistJSON `json:"playlists"`
}

type userPlaylistsResponse struct {
	envelope
	Playlist []playlistJSON `json:"playlist"`
}

type playlistDetailResponse struct {
	envelope
	Playlist *playlistJSON `json:"playlist"`
}

type hotResponse struct {
	envelope
	Tags []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"tags"`
}

type albumsResponse struct {
	envelope
	Albums    []albumJSON `json:"albums"`
	WeekData  []albumJSON `json:"weekData"`
	MonthData []albumJSON `json:"monthData"`
}

type lyricResponse struct {
	envelope
	Lrc    *lyricLayer `json:"lrc"`
	Tlyric *lyricLayer `json:"tlyric"`
	Klyric *lyricLayer `json:"klyric"`
}

type lyricLayer struct {
	Lyric string `json:"lyric"`
}

func (l *lyricLayer) text() string {
	if l == nil {
		return ""
	}
	return l.Lyric
}

type searchResponse struct {
	envelope
	Result *struct {
		Songs     []songJSON     `json:"songs"`
		Albums    []albumJSON    `json:"albums"`
		Playlists []playlistJSON `json:"playlists"`
	} `json:"result"`
}

type songURLResponse struct {
	envelope
	Data []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s songJSON) toTrack() track.Track {
	artists := s.Ar
	if len(artists) == 0 {
		artists = s.Artists
	}
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}

	album := s.Al
	if album == nil {
		album = s.Album
	}

	t := track.Track{
		ID:         formatID(s.ID),
		Title:      s.Name,
		Artist:     track.JoinArtists(names),
		DurationMs: s.Dt,
	}
	if t.DurationMs == 0 {
		t.DurationMs = s.Duration
	}
	if album != nil {
		t.Album = album.Name
		t.ArtworkURL = album.PicURL
	}
	return t
}

func toTracks(songs []songJSON) []track.Track {
	out := make([]track.Track, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.toTrack())
	}
	return out
}

func (p playlistJSON) toSummary() track.PlaylistSummary {
	s := track.PlaylistSummary{
		ID:         formatID(p.ID),
		Name:       p.Name,
		CoverURL:   p.CoverImgURL,
		TrackCount: p.TrackCount,
	}
	if p.Creator != nil {
		s.Creator = p.Creator.Nickname
	}
	return s
}

func toSummaries(pls []playlistJSON) []track.PlaylistSummary {
	out := make([]track.PlaylistSummary, 0, len(pls))
	for _, p := range pls {
		out = append(out, p.toSummary())
	}
	return out
}

func (p playlistJSON) toPlaylist() track.Playlist {
	return track.Playlist{
		ID:       formatID(p.ID),
		Name:     p.Name,
		CoverURL: p.CoverImgURL,
		Tracks:   toTracks(p.Tracks),
	}
}

func (a albumJSON) toAlbum() track.Album {
	cover := a.PicURL
	if cover == "" {
		cover = a.CoverImgURL
	}
	return track.Album{
		ID:       formatID(a.ID),
		Name:     a.Name,
		Artist:   a.Artist.Name,
		CoverURL: cover,
	}
}

func toAlbums(albums []albumJSON) []track.Album {
	out := make([]track.Album, 0, len(albums))
	for _, a := range albums {
		out = append(out, a.toAlbum())
	}
	return out
}
