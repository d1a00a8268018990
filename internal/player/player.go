package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/mediasession"
	"karolbroda.com/lyreplay/internal/track"
)

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

func (s Status) session() mediasession.PlaybackStatus {
	switch s {
	case StatusPlaying:
		return mediasession.StatusPlaying
	case StatusPaused:
		return mediasession.StatusPaused
	default:
		return mediasession.StatusStopped
	}
}

// State is a snapshot of playback. Volume is in [0,1]; PreviousVolume is the
// level restored when unmuting.
type State struct {
	Status         Status
	CurrentTimeMs  int64
	DurationMs     int64
	Volume         float64
	Muted          bool
	PreviousVolume float64
}

func (s State) Playing() bool { return s.Status == StatusPlaying }

// Progress is CurrentTimeMs/DurationMs in [0,1], or 0 when the duration is
// unknown.
func (s State) Progress() float64 {
	if s.DurationMs <= 0 {
		return 0
	}
	p := float64(s.CurrentTimeMs) / float64(s.DurationMs)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

type Event int

const (
	EventStateChanged Event = iota
	EventLineChanged
	EventTrackChanged
	EventTrackEnded
	EventLoadFailed
	EventNextRequested
	EventPrevRequested
)

func (e Event) String() string {
	switch e {
	case EventStateChanged:
		return "state-changed"
	case EventLineChanged:
		return "line-changed"
	case EventTrackChanged:
		return "track-changed"
	case EventTrackEnded:
		return "track-ended"
	case EventLoadFailed:
		return "load-failed"
	case EventNextRequested:
		return "next-requested"
	case EventPrevRequested:
		return "prev-requested"
	default:
		return "unknown"
	}
}

// EventData carries a copy of the controller state at the time of the event.
// Track is set for EventTrackChanged (nil when cleared), Line for
// EventLineChanged, Err for EventLoadFailed. Generation is the track
// generation the event belongs to; events from a replaced track are never
// delivered.
type EventData struct {
	Type       Event
	State      State
	Track      *track.Track
	Line       lyrics.Cue
	Err        error
	Generation uint64
}

// Stream is an opened audio source. Start may be called again after the end
// callback fired to play it once more from the current position.
type Stream interface {
	Start(volume float64, onEnd func()) error
	SetPaused(paused bool)
	SetVolume(volume float64)
	Seek(positionMs int64) error
	Position() int64
	Duration() int64
	Close() error
}

// Output opens streams. Open must not produce sound.
type Output interface {
	Open(ctx context.Context, src string) (Stream, error)
}

// Resolver looks up what a track needs before it can play.
type Resolver interface {
	TrackURL(ctx context.Context, id string) (string, error)
	Lyric(ctx context.Context, id string) (string, error)
}

var (
	ErrSourceLoad = errors.New("audio source failed to load")
	ErrNoSource   = errors.New("no audio source for track")
)

type SourceAttempt struct {
	URL string
	Err error
}

// SourceLoadError is reported once per track when every candidate source
// failed.
type SourceLoadError struct {
	TrackID  string
	Attempts []SourceAttempt
}

func (e *SourceLoadError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("track %s: %s", e.TrackID, ErrNoSource)
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.URL, a.Err))
	}
	return fmt.Sprintf("track %s: %s (%s)", e.TrackID, ErrSourceLoad, strings.Join(parts, "; "))
}

func (e *SourceLoadError) Unwrap() []error {
	errs := []error{ErrSourceLoad}
	if len(e.Attempts) == 0 {
		errs = append(errs, ErrNoSource)
	}
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
