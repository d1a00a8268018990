package mediasession

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Remote drives another MPRIS player over the session bus. The CLI uses it
// to control a running lyreplay instance.
type Remote struct {
	bus     *dbus.Conn
	service string
}

func NewRemote(bus *dbus.Conn, service string) (*Remote, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service == "" {
		return nil, errors.New("empty mpris service name")
	}
	return &Remote{bus: bus, service: service}, nil
}

func (r *Remote) Service() string { return r.service }

// FindPlayers lists bus names of MPRIS players whose identity starts with
// identity. An empty identity matches every player.
func FindPlayers(bus *dbus.Conn, identity string) ([]string, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	prefix := mprisNamePrefix + identity
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

func (r *Remote) NowPlaying() (Metadata, error) {
	variant, err := r.object().GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to get metadata property: %w", err)
	}

	raw, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return Metadata{}, fmt.Errorf("unexpected metadata type %T", variant.Value())
	}

	return metadataFromMap(raw), nil
}

func (r *Remote) Status() (Status, error) {
	obj := r.object()

	playback, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus")
	if err != nil {
		return Status{}, fmt.Errorf("failed to get playback status: %w", err)
	}
	text, _ := playback.Value().(string)

	status := Status{Playback: PlaybackStatus(text), Volume: 1}

	if position, err := obj.GetProperty(mprisPlayerIface + ".Position"); err == nil {
		if us, ok := position.Value().(int64); ok && us > 0 {
			status.PositionMs = us / 1000
		}
	}
	if volume, err := obj.GetProperty(mprisPlayerIface + ".Volume"); err == nil {
		if v, ok := volume.Value().(float64); ok {
			status.Volume = v
		}
	}

	return status, nil
}

func (r *Remote) PlayPause() error { return r.call("PlayPause") }
func (r *Remote) Next() error      { return r.call("Next") }
func (r *Remote) Previous() error  { return r.call("Previous") }
func (r *Remote) Stop() error      { return r.call("Stop") }

func (r *Remote) call(method string, args ...any) error {
	if err := r.object().Call(mprisPlayerIface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s on %s: %w", method, r.service, err)
	}
	return nil
}

func (r *Remote) object() dbus.BusObject {
	return r.bus.Object(r.service, mprisPath)
}

// RemoteEvent is a change observed on a followed player. Exactly one of
// Metadata or Playback is set.
type RemoteEvent struct {
	Metadata *Metadata
	Playback PlaybackStatus
}

// Follow subscribes to property changes of the remote player and calls fn for
// each until ctx is done.
func (r *Remote) Follow(ctx context.Context, fn func(RemoteEvent)) error {
	match := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
		r.service, mprisPath,
	)
	if err := r.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, match).Err; err != nil {
		return fmt.Errorf("failed to add properties match: %w", err)
	}
	defer r.bus.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, match)

	signals := make(chan *dbus.Signal, 10)
	r.bus.Signal(signals)
	defer r.bus.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			for _, ev := range decodePropertiesChanged(sig) {
				fn(ev)
			}
		}
	}
}

func decodePropertiesChanged(sig *dbus.Signal) []RemoteEvent {
	if sig == nil || sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" || len(sig.Body) < 2 {
		return nil
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != mprisPlayerIface {
		return nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}

	var events []RemoteEvent
	if v, exists := changed["Metadata"]; exists {
		if raw, ok := v.Value().(map[string]dbus.Variant); ok {
			meta := metadataFromMap(raw)
			events = append(events, RemoteEvent{Metadata: &meta})
		}
	}
	if v, exists := changed["PlaybackStatus"]; exists {
		if text, ok := v.Value().(string); ok {
			events = append(events, RemoteEvent{Playback: PlaybackStatus(text)})
		}
	}
	return events
}

func metadataFromMap(md map[string]dbus.Variant) Metadata {
	return Metadata{
		TrackID:    extractTrackID(md),
		Title:      extractString(md, "xesam:title"),
		Artist:     extractArtist(md, "xesam:artist"),
		Album:      extractString(md, "xesam:album"),
		ArtworkURL: extractString(md, "mpris:artUrl"),
		DurationMs: extractDurationMs(md, "mpris:length"),
	}
}

func extractTrackID(md map[string]dbus.Variant) string {
	variant, exists := md["mpris:trackid"]
	if !exists {
		return ""
	}

	var path string
	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		path = string(typed)
	case string:
		path = typed
	default:
		return ""
	}

	if path == noTrackPath {
		return ""
	}
	return strings.TrimPrefix(path, trackPathPrefix)
}

func extractString(md map[string]dbus.Variant, key string) string {
	variant, exists := md[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

func extractArtist(md map[string]dbus.Variant, key string) string {
	variant, exists := md[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		return strings.Join(typed, "/")
	case string:
		return typed
	default:
		return ""
	}
}

func extractDurationMs(md map[string]dbus.Variant, key string) int64 {
	variant, exists := md[key]
	if !exists {
		return 0
	}

	switch typed := variant.Value().(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return typed / 1000
	case uint64:
		return int64(typed / 1000)
	default:
		return 0
	}
}
