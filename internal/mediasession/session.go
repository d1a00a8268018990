// Package mediasession publishes now-playing information to the desktop and
// receives transport controls (play, pause, next, ...) from it.
package mediasession

import "sync"

type Action int

const (
	ActionPlay Action = iota
	ActionPause
	ActionPlayPause
	ActionStop
	ActionPrevious
	ActionNext
	ActionSeekTo
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionPlayPause:
		return "playpause"
	case ActionStop:
		return "stop"
	case ActionPrevious:
		return "previoustrack"
	case ActionNext:
		return "nexttrack"
	case ActionSeekTo:
		return "seekto"
	default:
		return "unknown"
	}
}

// Details accompanies an action. PositionMs is set for ActionSeekTo.
type Details struct {
	Action     Action
	PositionMs int64
}

type Handler func(Details)

type Metadata struct {
	TrackID    string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	DurationMs int64
}

// Session is the capability set the player needs from a host environment.
type Session interface {
	RegisterMetadata(meta Metadata) error
	SetActionHandler(action Action, handler Handler)
}

type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)

type Status struct {
	Playback   PlaybackStatus
	PositionMs int64
	Volume     float64
}

// StatusPublisher is implemented by sessions that can mirror playback status.
type StatusPublisher interface {
	PublishStatus(status Status)
}

// Noop satisfies Session without a host. It remembers what it was given so
// tests can inspect and trigger it.
type Noop struct {
	mu       sync.Mutex
	meta     Metadata
	status   Status
	handlers map[Action]Handler
}

func NewNoop() *Noop {
	return &Noop{handlers: make(map[Action]Handler)}
}

func (n *Noop) RegisterMetadata(meta Metadata) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.meta = meta
	return nil
}

func (n *Noop) SetActionHandler(action Action, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[Action]Handler)
	}
	n.handlers[action] = handler
}

func (n *Noop) PublishStatus(status Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}

func (n *Noop) Metadata() Metadata {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.meta
}

func (n *Noop) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// Trigger invokes the handler registered for the action, if any.
func (n *Noop) Trigger(d Details) bool {
	n.mu.Lock()
	handler := n.handlers[d.Action]
	n.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(d)
	return true
}
