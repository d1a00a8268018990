package player

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/mediasession"
	"karolbroda.com/lyreplay/internal/track"
)

type Options struct {
	Output   Output
	Resolver Resolver
	Session  mediasession.Session
	// Fallback returns an alternate source URL for a track id, or "".
	Fallback     func(id string) string
	Logger       *log.Logger
	SyncOffsetMs int64
}

// Controller owns playback of one track at a time and keeps the active lyric
// line in step with the audio position.
//
// Loads run in the background. Each SetTrack bumps a generation counter and
// any load result carrying an older generation is discarded.
type Controller struct {
	output   Output
	resolver Resolver
	session  mediasession.Session
	fallback func(id string) string
	logger   *log.Logger

	mu       sync.Mutex
	state    State
	track    *track.Track
	cues     *lyrics.CueEngine
	line     lyrics.Cue
	stream   Stream
	ended    bool
	gen      uint64
	cancel   context.CancelFunc
	listener func(EventData)

	// pending holds events awaiting delivery; draining is set while one
	// goroutine delivers them, in order.
	pending  []EventData
	draining bool

	loads sync.WaitGroup
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	session := opts.Session
	if session == nil {
		session = mediasession.NewNoop()
	}

	c := &Controller{
		output:   opts.Output,
		resolver: opts.Resolver,
		session:  session,
		fallback: opts.Fallback,
		logger:   logger,
		state:    State{Volume: 1, PreviousVolume: 1},
		cues:     lyrics.NewCueEngine(),
		line:     lyrics.Cue{Index: -1},
	}
	c.cues.SetOffset(opts.SyncOffsetMs)
	c.registerActions()

	return c
}

func (c *Controller) registerActions() {
	c.session.SetActionHandler(mediasession.ActionPlay, func(mediasession.Details) { c.Play() })
	c.session.SetActionHandler(mediasession.ActionPause, func(mediasession.Details) { c.Pause() })
	c.session.SetActionHandler(mediasession.ActionPlayPause, func(mediasession.Details) { c.TogglePlay() })
	c.session.SetActionHandler(mediasession.ActionStop, func(mediasession.Details) { c.Stop() })
	c.session.SetActionHandler(mediasession.ActionPrevious, func(mediasession.Details) {
		c.request(EventPrevRequested)
	})
	c.session.SetActionHandler(mediasession.ActionNext, func(mediasession.Details) {
		c.request(EventNextRequested)
	})
	c.session.SetActionHandler(mediasession.ActionSeekTo, func(d mediasession.Details) { c.Seek(d.PositionMs) })
}

// SetListener installs the event callback. Calls are serialized in emission
// order, never under the controller lock, on whichever goroutine is
// delivering at the time.
func (c *Controller) SetListener(fn func(EventData)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Track returns a copy of the current track, or nil.
func (c *Controller) Track() *track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil {
		return nil
	}
	t := *c.track
	return &t
}

func (c *Controller) Line() lyrics.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line
}

func (c *Controller) Lyrics() lyrics.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cues.Lines()
}

// SetTrack stops whatever is playing and starts loading t. A nil track
// leaves the controller idle.
func (c *Controller) SetTrack(t *track.Track) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.resetLocked()

	if t == nil {
		c.track = nil
		c.state.DurationMs = 0
		events := []EventData{
			c.eventLocked(EventData{Type: EventTrackChanged}),
			c.stateEventLocked(),
		}
		c.mu.Unlock()

		c.flush(events)
		return
	}

	current := *t
	c.track = &current
	c.state.DurationMs = max(current.DurationMs, 0)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	copied := current
	events := []EventData{
		c.eventLocked(EventData{Type: EventTrackChanged, Track: &copied}),
		c.stateEventLocked(),
	}
	c.loads.Add(1)
	c.mu.Unlock()

	err := c.session.RegisterMetadata(mediasession.Metadata{
		TrackID:    current.ID,
		Title:      current.Title,
		Artist:     current.Artist,
		Album:      current.Album,
		ArtworkURL: current.ArtworkURL,
		DurationMs: current.DurationMs,
	})
	if err != nil {
		c.logger.Warn("failed to publish media session metadata", "track", current.ID, "err", err)
	}

	c.flush(events)

	go func() {
		defer c.loads.Done()
		c.load(ctx, gen, current)
	}()
}

// resetLocked tears down the current stream and load. Caller holds mu.
func (c *Controller) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.closeStreamLocked()
	c.cues.Prime(lyrics.Track{})
	c.line = lyrics.Cue{Index: -1}
	c.ended = false
	c.state.Status = StatusIdle
	c.state.CurrentTimeMs = 0
}

func (c *Controller) closeStreamLocked() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		c.logger.Debug("failed to close stream", "err", err)
	}
	c.stream = nil
}

func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

func (c *Controller) load(ctx context.Context, gen uint64, t track.Track) {
	var (
		primary  string
		rawLyric string
		g        errgroup.Group
	)

	g.Go(func() error {
		if t.AudioSourceURL != "" {
			primary = t.AudioSourceURL
			return nil
		}
		if c.resolver == nil {
			return nil
		}
		url, err := c.resolver.TrackURL(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("resolve track url: %w", err)
		}
		primary = url
		return nil
	})
	// lyrics are optional, so their failure stays local
	g.Go(func() error {
		if c.resolver == nil {
			return nil
		}
		raw, err := c.resolver.Lyric(ctx, t.ID)
		if err != nil {
			c.logger.Warn("failed to fetch lyrics", "track", t.ID, "err", err)
			return nil
		}
		rawLyric = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("no primary source, trying fallback", "track", t.ID, "err", err)
	}

	if c.stale(gen) {
		c.logger.Debug("discarding stale load", "track", t.ID)
		return
	}

	parsed := lyrics.Parse(rawLyric)
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.cues.Prime(parsed)
	c.mu.Unlock()

	c.logger.Debug("lyrics primed", "track", t.ID, "lines", parsed.Len())

	loadErr := &SourceLoadError{TrackID: t.ID}
	for _, src := range c.candidates(t.ID, primary) {
		ok, err := c.tryOpen(ctx, gen, src)
		if ok {
			return
		}
		if err == nil {
			return
		}
		c.logger.Warn("audio source failed", "track", t.ID, "src", src, "err", err)
		loadErr.Attempts = append(loadErr.Attempts, SourceAttempt{URL: src, Err: err})
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state.Status = StatusIdle
	events := []EventData{
		c.eventLocked(EventData{Type: EventLoadFailed, Err: loadErr}),
		c.stateEventLocked(),
	}
	c.mu.Unlock()

	c.logger.Error("track could not be played", "track", t.ID, "err", loadErr)
	c.flush(events)
}

// candidates lists the primary source followed by the fallback, each once.
func (c *Controller) candidates(id, primary string) []string {
	var out []string
	if primary != "" {
		out = append(out, primary)
	}
	if c.fallback != nil {
		if fb := c.fallback(id); fb != "" && fb != primary {
			out = append(out, fb)
		}
	}
	return out
}

// tryOpen opens src and commits it as the live stream. It reports true when
// playback started. A false result with a nil error means the load went
// stale and must stop without reporting.
func (c *Controller) tryOpen(ctx context.Context, gen uint64, src string) (bool, error) {
	if c.output == nil {
		return false, ErrNoSource
	}
	if c.stale(gen) {
		return false, nil
	}

	stream, err := c.output.Open(ctx, src)
	if err != nil {
		if c.stale(gen) {
			return false, nil
		}
		return false, err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		stream.Close()
		return false, nil
	}

	err = stream.Start(c.state.Volume, func() { c.handleEnd(gen) })
	if err != nil {
		c.mu.Unlock()
		stream.Close()
		return false, err
	}

	c.stream = stream
	c.state.Status = StatusPlaying
	c.state.CurrentTimeMs = 0
	if d := stream.Duration(); d > 0 {
		c.state.DurationMs = d
	}

	var events []EventData
	if cue, changed := c.cues.Advance(0); changed {
		c.line = cue
		events = append(events, c.eventLocked(EventData{Type: EventLineChanged, Line: cue}))
	}
	events = append(events, c.stateEventLocked())
	c.mu.Unlock()

	c.logger.Info("playing", "src", src)
	c.flush(events)
	return true, nil
}

func (c *Controller) handleEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.stream == nil || c.state.Status == StatusIdle {
		c.mu.Unlock()
		return
	}

	c.ended = true
	c.state.Status = StatusIdle
	c.state.CurrentTimeMs = c.state.DurationMs
	events := []EventData{
		c.stateEventLocked(),
		c.eventLocked(EventData{Type: EventTrackEnded}),
		c.eventLocked(EventData{Type: EventNextRequested}),
	}
	c.mu.Unlock()

	c.flush(events)
}

// Play resumes playback. After the track ended it starts again from the
// position seeked to since, or from the top.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.stream == nil || c.state.Status == StatusPlaying {
		c.mu.Unlock()
		return
	}

	var events []EventData
	if c.ended {
		start := c.state.CurrentTimeMs
		if start < 0 || start >= c.state.DurationMs {
			start = 0
		}
		if err := c.stream.Seek(start); err != nil {
			c.logger.Warn("failed to rewind stream", "pos", start, "err", err)
		}
		gen := c.gen
		if err := c.stream.Start(c.state.Volume, func() { c.handleEnd(gen) }); err != nil {
			c.mu.Unlock()
			c.logger.Error("failed to restart stream", "err", err)
			return
		}
		c.ended = false
		c.state.CurrentTimeMs = start
		c.line = c.cues.Seek(start)
		events = append(events, c.eventLocked(EventData{Type: EventLineChanged, Line: c.line}))
	} else {
		c.stream.SetPaused(false)
	}

	c.state.Status = StatusPlaying
	events = append(events, c.stateEventLocked())
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) Pause() {
	c.mu.Lock()
	if c.stream == nil || c.state.Status != StatusPlaying {
		c.mu.Unlock()
		return
	}
	c.stream.SetPaused(true)
	c.state.CurrentTimeMs = c.stream.Position()
	c.state.Status = StatusPaused
	events := []EventData{c.stateEventLocked()}
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) TogglePlay() {
	if c.State().Status == StatusPlaying {
		c.Pause()
		return
	}
	c.Play()
}

// Stop pauses and rewinds to the start without unloading the track.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		return
	}
	if !c.ended {
		c.stream.SetPaused(true)
		if err := c.stream.Seek(0); err != nil {
			c.logger.Warn("failed to rewind stream", "err", err)
		}
	}
	c.state.Status = StatusPaused
	c.state.CurrentTimeMs = 0
	c.line = c.cues.Seek(0)
	events := []EventData{
		c.eventLocked(EventData{Type: EventLineChanged, Line: c.line}),
		c.stateEventLocked(),
	}
	c.mu.Unlock()

	c.flush(events)
}

// SetVolume clamps v into [0,1]. Zero mutes; any other level becomes the one
// restored on unmute.
func (c *Controller) SetVolume(v float64) {
	v = clampUnit(v)

	c.mu.Lock()
	c.state.Volume = v
	if v == 0 {
		c.state.Muted = true
	} else {
		c.state.Muted = false
		c.state.PreviousVolume = v
	}
	if c.stream != nil {
		c.stream.SetVolume(v)
	}
	events := []EventData{c.stateEventLocked()}
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) ToggleMute() {
	c.mu.Lock()
	if c.state.Muted || c.state.Volume == 0 {
		restore := c.state.PreviousVolume
		if restore <= 0 {
			restore = 1
		}
		c.state.Volume = restore
		c.state.Muted = false
	} else {
		c.state.PreviousVolume = c.state.Volume
		c.state.Volume = 0
		c.state.Muted = true
	}
	if c.stream != nil {
		c.stream.SetVolume(c.state.Volume)
	}
	events := []EventData{c.stateEventLocked()}
	c.mu.Unlock()

	c.flush(events)
}

// Seek jumps to positionMs, clamped to the track. With an unknown duration
// the only valid position is 0.
func (c *Controller) Seek(positionMs int64) {
	c.mu.Lock()
	if c.track == nil {
		c.mu.Unlock()
		return
	}
	events := c.seekLocked(positionMs)
	c.mu.Unlock()

	c.flush(events)
}

// SeekFraction seeks to f of the duration, f clamped into [0,1].
func (c *Controller) SeekFraction(f float64) {
	c.mu.Lock()
	if c.track == nil {
		c.mu.Unlock()
		return
	}
	target := int64(math.Round(clampUnit(f) * float64(c.state.DurationMs)))
	events := c.seekLocked(target)
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) seekLocked(positionMs int64) []EventData {
	duration := c.state.DurationMs
	switch {
	case duration <= 0, positionMs < 0:
		positionMs = 0
	case positionMs > duration:
		positionMs = duration
	}

	c.state.CurrentTimeMs = positionMs
	if c.stream != nil && !c.ended {
		if err := c.stream.Seek(positionMs); err != nil {
			c.logger.Warn("failed to seek stream", "pos", positionMs, "err", err)
		}
	}
	c.line = c.cues.Seek(positionMs)

	return []EventData{
		c.eventLocked(EventData{Type: EventLineChanged, Line: c.line}),
		c.stateEventLocked(),
	}
}

// SetSyncOffset shifts lyric timing; positive values show lines earlier.
func (c *Controller) SetSyncOffset(ms int64) {
	c.mu.Lock()
	c.cues.SetOffset(ms)
	var events []EventData
	if cue, changed := c.cues.Advance(c.state.CurrentTimeMs); changed {
		c.line = cue
		events = append(events, c.eventLocked(EventData{Type: EventLineChanged, Line: cue}))
	}
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) SyncOffset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cues.Offset()
}

// Poll samples the stream position while playing. Call it on every tick.
func (c *Controller) Poll() {
	c.mu.Lock()
	if c.stream == nil || c.state.Status != StatusPlaying {
		c.mu.Unlock()
		return
	}

	pos := c.stream.Position()
	if c.state.DurationMs > 0 && pos > c.state.DurationMs {
		pos = c.state.DurationMs
	}
	c.state.CurrentTimeMs = pos

	var events []EventData
	if cue, changed := c.cues.Advance(pos); changed {
		c.line = cue
		events = append(events, c.eventLocked(EventData{Type: EventLineChanged, Line: cue}))
	}
	events = append(events, c.stateEventLocked())
	c.mu.Unlock()

	c.flush(events)
}

// Close stops audio and abandons in-flight loads.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.resetLocked()
	events := []EventData{c.stateEventLocked()}
	c.mu.Unlock()

	c.flush(events)
}

// Next asks the owner of the playlist to advance. The controller itself has
// no notion of a queue.
func (c *Controller) Next() { c.request(EventNextRequested) }

func (c *Controller) Prev() { c.request(EventPrevRequested) }

func (c *Controller) request(kind Event) {
	c.mu.Lock()
	events := []EventData{c.eventLocked(EventData{Type: kind})}
	c.mu.Unlock()

	c.flush(events)
}

func (c *Controller) stateEventLocked() EventData {
	return c.eventLocked(EventData{Type: EventStateChanged})
}

// eventLocked stamps e with the current state and generation. Caller holds mu.
func (c *Controller) eventLocked(e EventData) EventData {
	e.State = c.state
	e.Generation = c.gen
	return e
}

// flush queues events and delivers them in order, dropping any whose
// generation was replaced before delivery. A flush that finds another
// goroutine delivering leaves its events to that goroutine, so a listener
// may call back into the controller. Must not be called with mu held.
func (c *Controller) flush(events []EventData) {
	if len(events) == 0 {
		return
	}

	c.mu.Lock()
	c.pending = append(c.pending, events...)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.pending) > 0 {
		e := c.pending[0]
		c.pending = c.pending[1:]
		if e.Generation != c.gen {
			continue
		}
		listener := c.listener
		c.mu.Unlock()

		if listener != nil {
			listener(e)
		}
		if e.Type == EventStateChanged {
			c.publish(e.State)
		}

		c.mu.Lock()
	}
	c.pending = nil
	c.draining = false
	c.mu.Unlock()
}

// publish mirrors state to the media session when it can take it.
func (c *Controller) publish(state State) {
	pub, ok := c.session.(mediasession.StatusPublisher)
	if !ok {
		return
	}
	pub.PublishStatus(mediasession.Status{
		Playback:   state.Status.session(),
		PositionMs: state.CurrentTimeMs,
		Volume:     state.Volume,
	})
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
