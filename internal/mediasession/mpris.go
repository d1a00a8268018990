package mediasession

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisNamePrefix  = "org.mpris.MediaPlayer2."
	noTrackPath      = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
	trackPathPrefix  = "/org/lyreplay/track/"
)

// MPRIS exposes the player on the D-Bus session bus so desktop shells,
// media keys and playerctl can see and drive it.
type MPRIS struct {
	conn     *dbus.Conn
	name     string
	props    *prop.Properties
	logger   *log.Logger
	mu       sync.Mutex
	handlers map[Action]Handler
	trackID  dbus.ObjectPath
	status   Status
}

// NewMPRIS exports the MPRIS interfaces and claims a bus name derived from
// identity. The caller keeps ownership of conn.
func NewMPRIS(conn *dbus.Conn, identity string, logger *log.Logger) (*MPRIS, error) {
	if conn == nil {
		return nil, errors.New("nil dbus connection")
	}
	if identity == "" {
		return nil, errors.New("empty mpris identity")
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	m := &MPRIS{
		conn:     conn,
		logger:   logger,
		handlers: make(map[Action]Handler),
		trackID:  noTrackPath,
		status:   Status{Playback: StatusStopped, Volume: 1},
	}

	root := mprisRoot{m}
	player := mprisPlayer{m}

	if err := conn.Export(root, mprisPath, mprisRootIface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", mprisRootIface, err)
	}
	if err := conn.Export(player, mprisPath, mprisPlayerIface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", mprisPlayerIface, err)
	}

	props, err := prop.Export(conn, mprisPath, prop.Map{
		mprisRootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitConst},
			"CanRaise":            {Value: false, Emit: prop.EmitConst},
			"HasTrackList":        {Value: false, Emit: prop.EmitConst},
			"Identity":            {Value: identity, Emit: prop.EmitConst},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitConst},
			"SupportedMimeTypes":  {Value: []string{"audio/mpeg"}, Emit: prop.EmitConst},
		},
		mprisPlayerIface: {
			"PlaybackStatus": {Value: string(StatusStopped), Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitTrue},
			"Metadata":       {Value: metadataMap(Metadata{}), Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Emit: prop.EmitTrue},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"MinimumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"MaximumRate":    {Value: 1.0, Emit: prop.EmitConst},
			"CanGoNext":      {Value: true, Emit: prop.EmitConst},
			"CanGoPrevious":  {Value: true, Emit: prop.EmitConst},
			"CanPlay":        {Value: true, Emit: prop.EmitConst},
			"CanPause":       {Value: true, Emit: prop.EmitConst},
			"CanSeek":        {Value: true, Emit: prop.EmitConst},
			"CanControl":     {Value: true, Emit: prop.EmitConst},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export mpris properties: %w", err)
	}
	m.props = props

	node := &introspect.Node{
		Name: mprisPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       mprisRootIface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(mprisRootIface),
			},
			{
				Name:       mprisPlayerIface,
				Methods:    introspect.Methods(player),
				Properties: props.Introspection(mprisPlayerIface),
				Signals: []introspect.Signal{{
					Name: "Seeked",
					Args: []introspect.Arg{{Name: "Position", Type: "x"}},
				}},
			},
		},
	}
	err = conn.Export(introspect.NewIntrospectable(node), mprisPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	name, err := m.claimName(identity)
	if err != nil {
		return nil, err
	}
	m.name = name

	return m, nil
}

func (m *MPRIS) claimName(identity string) (string, error) {
	candidates := []string{
		mprisNamePrefix + identity,
		fmt.Sprintf("%s%s.instance%d", mprisNamePrefix, identity, os.Getpid()),
	}

	for _, name := range candidates {
		reply, err := m.conn.RequestName(name, dbus.NameFlagDoNotQueue)
		if err != nil {
			return "", fmt.Errorf("failed to request bus name %s: %w", name, err)
		}
		if reply == dbus.RequestNameReplyPrimaryOwner {
			return name, nil
		}
		m.logger.Debug("mpris bus name taken", "name", name)
	}

	return "", fmt.Errorf("no free mpris bus name for %s", identity)
}

// Name is the bus name this session owns.
func (m *MPRIS) Name() string { return m.name }

func (m *MPRIS) RegisterMetadata(meta Metadata) error {
	m.mu.Lock()
	m.trackID = trackObjectPath(meta.TrackID)
	m.mu.Unlock()

	m.props.SetMust(mprisPlayerIface, "Metadata", metadataMap(meta))
	return nil
}

func (m *MPRIS) SetActionHandler(action Action, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[action] = handler
}

func (m *MPRIS) PublishStatus(status Status) {
	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if status.Playback != previous.Playback {
		m.props.SetMust(mprisPlayerIface, "PlaybackStatus", string(status.Playback))
	}
	if status.Volume != previous.Volume {
		m.props.SetMust(mprisPlayerIface, "Volume", status.Volume)
	}
	m.props.SetMust(mprisPlayerIface, "Position", status.PositionMs*1000)
}

// Close releases the bus name. Exported objects go away with the connection.
func (m *MPRIS) Close() error {
	if m.name == "" {
		return nil
	}
	_, err := m.conn.ReleaseName(m.name)
	return err
}

func (m *MPRIS) dispatch(d Details) {
	m.mu.Lock()
	handler := m.handlers[d.Action]
	m.mu.Unlock()

	if handler == nil {
		m.logger.Debug("no handler for mpris action", "action", d.Action)
		return
	}
	handler(d)
}

func (m *MPRIS) snapshot() (Status, dbus.ObjectPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.trackID
}

type mprisRoot struct{ m *MPRIS }

func (r mprisRoot) Raise() *dbus.Error { return nil }
func (r mprisRoot) Quit() *dbus.Error  { return nil }

type mprisPlayer struct{ m *MPRIS }

func (p mprisPlayer) Next() *dbus.Error {
	p.m.dispatch(Details{Action: ActionNext})
	return nil
}

func (p mprisPlayer) Previous() *dbus.Error {
	p.m.dispatch(Details{Action: ActionPrevious})
	return nil
}

func (p mprisPlayer) Pause() *dbus.Error {
	p.m.dispatch(Details{Action: ActionPause})
	return nil
}

func (p mprisPlayer) Play() *dbus.Error {
	p.m.dispatch(Details{Action: ActionPlay})
	return nil
}

func (p mprisPlayer) PlayPause() *dbus.Error {
	p.m.mu.Lock()
	_, hasToggle := p.m.handlers[ActionPlayPause]
	playing := p.m.status.Playback == StatusPlaying
	p.m.mu.Unlock()

	switch {
	case hasToggle:
		p.m.dispatch(Details{Action: ActionPlayPause})
	case playing:
		p.m.dispatch(Details{Action: ActionPause})
	default:
		p.m.dispatch(Details{Action: ActionPlay})
	}
	return nil
}

func (p mprisPlayer) Stop() *dbus.Error {
	p.m.dispatch(Details{Action: ActionStop})
	return nil
}

// Seek moves relative to the current position; offset is in microseconds.
func (p mprisPlayer) Seek(offset int64) *dbus.Error {
	status, _ := p.m.snapshot()
	target := status.PositionMs + offset/1000
	if target < 0 {
		target = 0
	}
	p.m.dispatch(Details{Action: ActionSeekTo, PositionMs: target})
	p.m.emitSeeked(target)
	return nil
}

func (p mprisPlayer) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	_, current := p.m.snapshot()
	if trackID != current || position < 0 {
		return nil
	}
	p.m.dispatch(Details{Action: ActionSeekTo, PositionMs: position / 1000})
	p.m.emitSeeked(position / 1000)
	return nil
}

func (p mprisPlayer) OpenUri(uri string) *dbus.Error {
	return dbus.MakeFailedError(fmt.Errorf("opening %q is not supported", uri))
}

func (m *MPRIS) emitSeeked(positionMs int64) {
	if err := m.conn.Emit(mprisPath, mprisPlayerIface+".Seeked", positionMs*1000); err != nil {
		m.logger.Debug("failed to emit seeked", "err", err)
	}
}

func metadataMap(meta Metadata) map[string]dbus.Variant {
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackObjectPath(meta.TrackID)),
	}
	if meta.Title != "" {
		md["xesam:title"] = dbus.MakeVariant(meta.Title)
	}
	if meta.Artist != "" {
		md["xesam:artist"] = dbus.MakeVariant(strings.Split(meta.Artist, "/"))
	}
	if meta.Album != "" {
		md["xesam:album"] = dbus.MakeVariant(meta.Album)
	}
	if meta.ArtworkURL != "" {
		md["mpris:artUrl"] = dbus.MakeVariant(meta.ArtworkURL)
	}
	if meta.DurationMs > 0 {
		md["mpris:length"] = dbus.MakeVariant(meta.DurationMs * 1000)
	}
	return md
}

// trackObjectPath maps a catalog id onto a valid D-Bus object path.
func trackObjectPath(id string) dbus.ObjectPath {
	if id == "" {
		return noTrackPath
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return dbus.ObjectPath(trackPathPrefix + b.String())
}
