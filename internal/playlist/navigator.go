// Package playlist tracks the selected position in the current playlist.
// Navigation is linear: there is no wrap-around, shuffle or queue.
package playlist

import (
	"sync"

	"karolbroda.com/lyreplay/internal/track"
)

type Navigator struct {
	mu       sync.RWMutex
	playlist track.Playlist
	index    int
}

func NewNavigator() *Navigator {
	return &Navigator{index: -1}
}

// Load replaces the playlist and clears the selection.
func (n *Navigator) Load(pl track.Playlist) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playlist = pl
	n.index = -1
}

func (n *Navigator) Playlist() track.Playlist {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.playlist
}

func (n *Navigator) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.playlist.Tracks)
}

// Select makes track i current. Out-of-range indexes are rejected.
func (n *Navigator) Select(i int) (track.Track, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.playlist.Tracks) {
		return track.Track{}, false
	}
	n.index = i
	return n.playlist.Tracks[i], true
}

func (n *Navigator) Next() (track.Track, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index < 0 || n.index >= len(n.playlist.Tracks)-1 {
		return track.Track{}, false
	}
	n.index++
	return n.playlist.Tracks[n.index], true
}

func (n *Navigator) Prev() (track.Track, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index <= 0 || n.index >= len(n.playlist.Tracks) {
		return track.Track{}, false
	}
	n.index--
	return n.playlist.Tracks[n.index], true
}

func (n *Navigator) Current() (track.Track, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.index < 0 || n.index >= len(n.playlist.Tracks) {
		return track.Track{}, false
	}
	return n.playlist.Tracks[n.index], true
}

func (n *Navigator) Index() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.index
}

func (n *Navigator) HasNext() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.index >= 0 && n.index < len(n.playlist.Tracks)-1
}

func (n *Navigator) HasPrev() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.index > 0 && n.index < len(n.playlist.Tracks)
}
