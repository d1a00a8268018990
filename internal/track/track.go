package track

import (
	"strings"
)

// Track is a single playable song. It is a value type: a selection produces
// a new Track instead of mutating the current one.
type Track struct {
	ID             string
	Title          string
	Artist         string
	Album          string
	ArtworkURL     string
	AudioSourceURL string
	DurationMs     int64
}

func (t *Track) IsValid() bool {
	if t == nil {
		return false
	}
	return t.ID != "" && t.Title != ""
}

func (t *Track) IsSameTrack(other *Track) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.ID != "" && other.ID != "" {
		return t.ID == other.ID
	}
	return t.Title == other.Title && t.Artist == other.Artist
}

// Subtitle is the "artist - album" line shown under a track title.
func (t *Track) Subtitle() string {
	if t == nil {
		return ""
	}
	if t.Album == "" {
		return t.Artist
	}
	if t.Artist == "" {
		return t.Album
	}
	return t.Artist + " - " + t.Album
}

// JoinArtists joins multiple artist names the way the catalog displays them.
func JoinArtists(names []string) string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			kept = append(kept, name)
		}
	}
	return strings.Join(kept, "/")
}

type Playlist struct {
	ID       string
	Name     string
	CoverURL string
	Tracks   []Track
}

func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Tracks)
}

// PlaylistSummary is a playlist as listed by the catalog, without tracks.
type PlaylistSummary struct {
	ID         string
	Name       string
	CoverURL   string
	TrackCount int
	Creator    string
}

type Album struct {
	ID       string
	Name     string
	Artist   string
	CoverURL string
}
