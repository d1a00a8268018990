package player

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"karolbroda.com/lyreplay/internal/mediasession"
	"karolbroda.com/lyreplay/internal/track"
)

type fakeStream struct {
	mu       sync.Mutex
	src      string
	starts   int
	paused   bool
	volume   float64
	position int64
	duration int64
	closed   bool
	onEnd    func()
}

func (s *fakeStream) Start(volume float64, onEnd func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.volume = volume
	s.onEnd = onEnd
	return nil
}

func (s *fakeStream) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *fakeStream) SetVolume(volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

func (s *fakeStream) Seek(positionMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = positionMs
	return nil
}

func (s *fakeStream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *fakeStream) Duration() int64 { return s.duration }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) setPosition(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = ms
}

func (s *fakeStream) end() {
	s.mu.Lock()
	onEnd := s.onEnd
	s.mu.Unlock()
	onEnd()
}

type fakeOutput struct {
	mu       sync.Mutex
	duration int64
	fail     map[string]error
	opened   []string
	streams  []*fakeStream
}

func (o *fakeOutput) Open(_ context.Context, src string) (Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, src)
	if err := o.fail[src]; err != nil {
		return nil, err
	}
	s := &fakeStream{src: src, duration: o.duration}
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOutput) openedSources() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

func (o *fakeOutput) last() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return nil
	}
	return o.streams[len(o.streams)-1]
}

type fakeResolver struct {
	urls   map[string]string
	lyrics map[string]string
	gates  map[string]chan struct{}
}

func (r *fakeResolver) TrackURL(_ context.Context, id string) (string, error) {
	if gate, ok := r.gates[id]; ok {
		<-gate
	}
	url, ok := r.urls[id]
	if !ok {
		return "", errors.New("not found")
	}
	return url, nil
}

func (r *fakeResolver) Lyric(_ context.Context, id string) (string, error) {
	return r.lyrics[id], nil
}

type recorder struct {
	mu     sync.Mutex
	events []EventData
}

func (r *recorder) record(e EventData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

func (r *recorder) of(kind Event) []EventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventData
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	c        *Controller
	output   *fakeOutput
	resolver *fakeResolver
	session  *mediasession.Noop
	events   *recorder
}

func newHarness() *harness {
	h := &harness{
		output: &fakeOutput{duration: 10000, fail: map[string]error{}},
		resolver: &fakeResolver{
			urls:   map[string]string{"1": "https://cdn/1.mp3", "2": "https://cdn/2.mp3"},
			lyrics: map[string]string{"1": "[00:00.00]a\n[00:05.00]b\n[00:10.00]c"},
			gates:  map[string]chan struct{}{},
		},
		session: mediasession.NewNoop(),
		events:  &recorder{},
	}
	h.c = NewController(Options{
		Output:   h.output,
		Resolver: h.resolver,
		Session:  h.session,
		Fallback: func(id string) string { return "https://fallback/" + id + ".mp3" },
	})
	h.c.SetListener(h.events.record)
	return h
}

func (h *harness) play(t *testing.T, id string) *fakeStream {
	t.Helper()
	h.c.SetTrack(&track.Track{ID: id, Title: "song " + id, Artist: "someone"})
	h.c.loads.Wait()
	s := h.output.last()
	if s == nil {
		t.Fatalf("no stream opened for track %s", id)
	}
	if h.c.State().Status != StatusPlaying {
		t.Fatalf("expected playing after load, got %s", h.c.State().Status)
	}
	return s
}

func TestVolume(t *testing.T) {
	t.Run("Clamps", func(t *testing.T) {
		h := newHarness()

		h.c.SetVolume(-5)
		if v := h.c.State().Volume; v != 0 {
			t.Errorf("SetVolume(-5): expected 0, got %v", v)
		}
		if !h.c.State().Muted {
			t.Error("volume 0 should mute")
		}

		h.c.SetVolume(5)
		if v := h.c.State().Volume; v != 1 {
			t.Errorf("SetVolume(5): expected 1, got %v", v)
		}
		if h.c.State().Muted {
			t.Error("non-zero volume should unmute")
		}

		h.c.SetVolume(math.NaN())
		if v := h.c.State().Volume; v != 0 {
			t.Errorf("SetVolume(NaN): expected 0, got %v", v)
		}
	})

	t.Run("Mute Round Trip", func(t *testing.T) {
		h := newHarness()
		h.c.SetVolume(0.7)

		h.c.ToggleMute()
		if s := h.c.State(); s.Volume != 0 || !s.Muted {
			t.Fatalf("expected muted at 0, got %+v", s)
		}

		h.c.ToggleMute()
		if s := h.c.State(); s.Volume != 0.7 || s.Muted {
			t.Errorf("expected 0.7 restored, got %+v", s)
		}
	})

	t.Run("Unmute Without Previous Level Restores Full", func(t *testing.T) {
		h := newHarness()
		h.c.SetVolume(0)
		h.c.ToggleMute()
		if v := h.c.State().Volume; v == 0 {
			t.Errorf("unmute should restore a non-zero level, got %v", v)
		}

		fresh := newHarness()
		fresh.c.ToggleMute()
		fresh.c.ToggleMute()
		if v := fresh.c.State().Volume; v != 1 {
			t.Errorf("expected 1, got %v", v)
		}
	})

	t.Run("Applies To Live Stream", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")

		h.c.SetVolume(0.25)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.volume != 0.25 {
			t.Errorf("expected stream volume 0.25, got %v", s.volume)
		}
	})
}

func TestSetTrack(t *testing.T) {
	t.Run("Loads And Plays", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")

		if s.src != "https://cdn/1.mp3" {
			t.Errorf("expected resolved url, got %s", s.src)
		}
		if s.starts != 1 {
			t.Errorf("expected one start, got %d", s.starts)
		}
		if h.c.Lyrics().Len() != 3 {
			t.Errorf("expected 3 lyric lines, got %d", h.c.Lyrics().Len())
		}
		if got := h.c.Line(); got.Line.Text != "a" {
			t.Errorf("expected first line active at 0, got %+v", got)
		}
		if h.session.Metadata().Title != "song 1" {
			t.Errorf("expected metadata published, got %+v", h.session.Metadata())
		}
		if h.session.Status().Playback != mediasession.StatusPlaying {
			t.Errorf("expected session status playing, got %s", h.session.Status().Playback)
		}
		if h.c.State().DurationMs != 10000 {
			t.Errorf("expected duration from stream, got %d", h.c.State().DurationMs)
		}
	})

	t.Run("Direct Source Skips Resolver", func(t *testing.T) {
		h := newHarness()
		h.c.SetTrack(&track.Track{ID: "9", Title: "x", AudioSourceURL: "https://direct/9.mp3"})
		h.c.loads.Wait()

		if got := h.output.openedSources(); len(got) != 1 || got[0] != "https://direct/9.mp3" {
			t.Errorf("expected direct source, got %v", got)
		}
	})

	t.Run("Switching Closes Previous Stream", func(t *testing.T) {
		h := newHarness()
		first := h.play(t, "1")
		h.play(t, "2")

		first.mu.Lock()
		defer first.mu.Unlock()
		if !first.closed {
			t.Error("previous stream should be closed on track change")
		}
	})

	t.Run("Stale Resolution Has No Effect", func(t *testing.T) {
		h := newHarness()
		gate := make(chan struct{})
		h.resolver.gates["1"] = gate

		h.c.SetTrack(&track.Track{ID: "1", Title: "one"})
		h.c.SetTrack(&track.Track{ID: "2", Title: "two"})
		close(gate)
		h.c.loads.Wait()

		if cur := h.c.Track(); cur == nil || cur.ID != "2" {
			t.Fatalf("expected track 2 current, got %+v", cur)
		}
		for _, src := range h.output.openedSources() {
			if src == "https://cdn/1.mp3" {
				t.Error("stale source for track 1 was opened")
			}
		}
		if s := h.output.last(); s == nil || s.src != "https://cdn/2.mp3" {
			t.Errorf("expected track 2 stream, got %+v", s)
		}
		if h.c.Lyrics().Len() != 0 {
			t.Error("track 1 lyrics leaked into track 2")
		}
		if h.events.count(EventLoadFailed) != 0 {
			t.Error("stale load should not report failure")
		}
	})

	t.Run("Nil Track Goes Idle", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")

		h.c.SetTrack(nil)
		if h.c.State().Status != StatusIdle || h.c.Track() != nil {
			t.Errorf("expected idle with no track, got %+v", h.c.State())
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.closed {
			t.Error("stream should be closed")
		}
	})
}

func TestSourceFallback(t *testing.T) {
	t.Run("Both Fail Once", func(t *testing.T) {
		h := newHarness()
		h.output.fail["https://cdn/1.mp3"] = errors.New("403")
		h.output.fail["https://fallback/1.mp3"] = errors.New("404")

		h.c.SetTrack(&track.Track{ID: "1", Title: "one"})
		h.c.loads.Wait()

		opened := h.output.openedSources()
		if len(opened) != 2 || opened[0] != "https://cdn/1.mp3" || opened[1] != "https://fallback/1.mp3" {
			t.Errorf("expected primary then fallback once, got %v", opened)
		}
		if h.c.State().Status != StatusIdle {
			t.Errorf("expected idle, got %s", h.c.State().Status)
		}

		failed := h.events.of(EventLoadFailed)
		if len(failed) != 1 {
			t.Fatalf("expected exactly one load failure, got %d", len(failed))
		}
		if !errors.Is(failed[0].Err, ErrSourceLoad) {
			t.Errorf("expected ErrSourceLoad, got %v", failed[0].Err)
		}
		var loadErr *SourceLoadError
		if !errors.As(failed[0].Err, &loadErr) || len(loadErr.Attempts) != 2 {
			t.Errorf("expected two attempts recorded, got %v", failed[0].Err)
		}
	})

	t.Run("Fallback Succeeds", func(t *testing.T) {
		h := newHarness()
		h.output.fail["https://cdn/1.mp3"] = errors.New("403")

		s := h.play(t, "1")
		if s.src != "https://fallback/1.mp3" {
			t.Errorf("expected fallback source, got %s", s.src)
		}
		if h.events.count(EventLoadFailed) != 0 {
			t.Error("recovered load should not report failure")
		}
	})

	t.Run("Unresolved Uses Fallback Only", func(t *testing.T) {
		h := newHarness()
		h.play(t, "404")

		if got := h.output.openedSources(); len(got) != 1 || got[0] != "https://fallback/404.mp3" {
			t.Errorf("expected only fallback, got %v", got)
		}
	})

	t.Run("Resolution Error Logged Once", func(t *testing.T) {
		var buf bytes.Buffer
		h := newHarness()
		h.c = NewController(Options{
			Output:   h.output,
			Resolver: h.resolver,
			Session:  h.session,
			Fallback: func(id string) string { return "https://fallback/" + id + ".mp3" },
			Logger:   log.New(&buf),
		})
		h.play(t, "404")

		if n := strings.Count(buf.String(), "no primary source"); n != 1 {
			t.Errorf("expected one resolution warning, got %d in %q", n, buf.String())
		}
		if !strings.Contains(buf.String(), "not found") {
			t.Errorf("expected resolver error in log, got %q", buf.String())
		}
	})

	t.Run("No Candidates", func(t *testing.T) {
		h := newHarness()
		h.c.fallback = nil

		h.c.SetTrack(&track.Track{ID: "404", Title: "missing"})
		h.c.loads.Wait()

		failed := h.events.of(EventLoadFailed)
		if len(failed) != 1 || !errors.Is(failed[0].Err, ErrNoSource) {
			t.Errorf("expected one ErrNoSource failure, got %+v", failed)
		}
	})
}

func TestTransport(t *testing.T) {
	t.Run("No Source Is A No-Op", func(t *testing.T) {
		h := newHarness()
		h.c.Play()
		h.c.Pause()
		h.c.TogglePlay()
		h.c.Seek(5000)
		h.c.SeekFraction(0.5)
		h.c.Stop()
		h.c.Poll()

		if h.c.State().Status != StatusIdle {
			t.Errorf("expected idle, got %s", h.c.State().Status)
		}
		if len(h.events.events) != 0 {
			t.Errorf("expected no events, got %d", len(h.events.events))
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")

		h.c.TogglePlay()
		if h.c.State().Status != StatusPaused || !s.paused {
			t.Fatalf("expected paused, got %s", h.c.State().Status)
		}

		h.c.Pause()
		h.c.TogglePlay()
		if h.c.State().Status != StatusPlaying || s.paused {
			t.Errorf("expected playing, got %s", h.c.State().Status)
		}
	})

	t.Run("Seek Clamps", func(t *testing.T) {
		h := newHarness()
		h.play(t, "1")

		h.c.Seek(20000)
		if got := h.c.State().CurrentTimeMs; got != 10000 {
			t.Errorf("expected clamp to 10000, got %d", got)
		}

		h.c.Seek(-5)
		if got := h.c.State().CurrentTimeMs; got != 0 {
			t.Errorf("expected clamp to 0, got %d", got)
		}

		h.c.SeekFraction(0.5)
		if got := h.c.State().CurrentTimeMs; got != 5000 {
			t.Errorf("expected 5000, got %d", got)
		}
		if got := h.c.Line(); got.Line.Text != "b" {
			t.Errorf("expected seek to resync lyric to 'b', got %+v", got)
		}
	})

	t.Run("Seek With Unknown Duration", func(t *testing.T) {
		h := newHarness()
		h.output.duration = 0
		h.play(t, "2")

		h.c.Seek(5000)
		if got := h.c.State().CurrentTimeMs; got != 0 {
			t.Errorf("expected 0 with unknown duration, got %d", got)
		}
	})

	t.Run("Poll Emits Line Changes Only On Change", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		h.events.reset()

		s.setPosition(5200)
		h.c.Poll()
		h.c.Poll()
		s.setPosition(5900)
		h.c.Poll()

		lines := h.events.of(EventLineChanged)
		if len(lines) != 1 || lines[0].Line.Line.Text != "b" {
			t.Errorf("expected one change to 'b', got %+v", lines)
		}
		if h.events.count(EventStateChanged) != 3 {
			t.Errorf("expected a state event per tick, got %d", h.events.count(EventStateChanged))
		}
		if got := h.c.State().CurrentTimeMs; got != 5900 {
			t.Errorf("expected 5900, got %d", got)
		}
	})

	t.Run("Sync Offset", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")

		s.setPosition(4600)
		h.c.Poll()
		if h.c.Line().Line.Text != "a" {
			t.Fatalf("expected 'a', got %+v", h.c.Line())
		}

		h.c.SetSyncOffset(500)
		if h.c.Line().Line.Text != "b" {
			t.Errorf("offset should bring 'b' forward, got %+v", h.c.Line())
		}
		if h.c.SyncOffset() != 500 {
			t.Errorf("expected offset 500, got %d", h.c.SyncOffset())
		}
	})
}

func TestTrackEnd(t *testing.T) {
	t.Run("Ends Then Requests Next", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		h.events.reset()

		s.end()

		state := h.c.State()
		if state.Status != StatusIdle || state.CurrentTimeMs != state.DurationMs {
			t.Errorf("expected idle at end, got %+v", state)
		}

		var order []Event
		for _, e := range h.events.events {
			if e.Type == EventTrackEnded || e.Type == EventNextRequested {
				order = append(order, e.Type)
			}
		}
		if len(order) != 2 || order[0] != EventTrackEnded || order[1] != EventNextRequested {
			t.Errorf("expected ended then next, got %v", order)
		}
	})

	t.Run("Play After End Restarts", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		s.setPosition(10000)
		s.end()

		h.c.Play()
		if h.c.State().Status != StatusPlaying || h.c.State().CurrentTimeMs != 0 {
			t.Errorf("expected restart from 0, got %+v", h.c.State())
		}
		if s.starts != 2 || s.position != 0 {
			t.Errorf("expected rewind and second start, got starts=%d pos=%d", s.starts, s.position)
		}
	})

	t.Run("Play After Seek Past End Resumes At Seek", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		s.setPosition(10000)
		s.end()

		h.c.Seek(7000)
		h.c.Play()

		state := h.c.State()
		if state.Status != StatusPlaying || state.CurrentTimeMs != 7000 {
			t.Errorf("expected playing at 7000, got %+v", state)
		}
		if s.Position() != 7000 {
			t.Errorf("expected stream at 7000, got %d", s.Position())
		}
		if line := h.c.Line(); line.Line.Text != "b" {
			t.Errorf("expected line b, got %+v", line)
		}
	})

	t.Run("Stale End Ignored", func(t *testing.T) {
		h := newHarness()
		first := h.play(t, "1")
		h.play(t, "2")
		h.events.reset()

		first.end()

		if h.c.State().Status != StatusPlaying {
			t.Errorf("stale end changed state to %s", h.c.State().Status)
		}
		if h.events.count(EventTrackEnded) != 0 {
			t.Error("stale end emitted an event")
		}
	})
}

func TestEventDelivery(t *testing.T) {
	t.Run("Tick From Replaced Track Is Dropped", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		h.resolver.gates["2"] = make(chan struct{})

		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		h.c.SetListener(func(e EventData) {
			h.events.record(e)
			if e.Type == EventLineChanged && e.Line.Line.Text == "b" {
				once.Do(func() {
					close(entered)
					<-release
				})
			}
		})
		h.events.reset()

		s.setPosition(5000)
		done := make(chan struct{})
		go func() {
			h.c.Poll()
			close(done)
		}()

		<-entered
		h.c.SetTrack(&track.Track{ID: "2", Title: "song 2"})
		close(release)
		<-done

		h.events.mu.Lock()
		events := append([]EventData(nil), h.events.events...)
		h.events.mu.Unlock()

		changed := -1
		for i, e := range events {
			if e.Type == EventTrackChanged {
				changed = i
			}
		}
		if changed < 0 {
			t.Fatalf("track change not delivered: %v", events)
		}
		for _, e := range events[changed:] {
			if e.Generation != events[changed].Generation {
				t.Errorf("event %s from generation %d delivered after switch to %d", e.Type, e.Generation, events[changed].Generation)
			}
			if e.Type == EventStateChanged && e.State.Status == StatusPlaying {
				t.Errorf("stale playing state delivered after switch: %+v", e.State)
			}
		}
		if last := events[len(events)-1]; last.State.Status != StatusIdle || last.State.CurrentTimeMs != 0 {
			t.Errorf("expected listener to end on idle state, got %+v", last.State)
		}

		close(h.resolver.gates["2"])
		h.c.loads.Wait()
	})

	t.Run("Listener May Switch Tracks", func(t *testing.T) {
		h := newHarness()
		s := h.play(t, "1")
		h.c.SetListener(func(e EventData) {
			h.events.record(e)
			if e.Type == EventNextRequested {
				h.c.SetTrack(&track.Track{ID: "2", Title: "song 2"})
			}
		})
		h.events.reset()

		s.end()
		h.c.loads.Wait()

		var order []Event
		for _, e := range h.events.events {
			if e.Type == EventNextRequested || e.Type == EventTrackChanged {
				order = append(order, e.Type)
			}
		}
		if len(order) != 2 || order[0] != EventNextRequested || order[1] != EventTrackChanged {
			t.Errorf("expected next request then track change, got %v", order)
		}
		if tr := h.c.Track(); tr == nil || tr.ID != "2" {
			t.Errorf("expected track 2, got %+v", tr)
		}
		if h.c.State().Status != StatusPlaying {
			t.Errorf("expected playing, got %s", h.c.State().Status)
		}
	})

	t.Run("Events Carry Generation", func(t *testing.T) {
		h := newHarness()
		h.play(t, "1")
		h.play(t, "2")

		changes := h.events.of(EventTrackChanged)
		if len(changes) != 2 || changes[1].Generation <= changes[0].Generation {
			t.Errorf("expected increasing generations, got %+v", changes)
		}
	})
}

func TestSessionActions(t *testing.T) {
	h := newHarness()
	h.play(t, "1")

	h.session.Trigger(mediasession.Details{Action: mediasession.ActionPause})
	if h.c.State().Status != StatusPaused {
		t.Errorf("expected pause from session, got %s", h.c.State().Status)
	}

	h.session.Trigger(mediasession.Details{Action: mediasession.ActionPlayPause})
	if h.c.State().Status != StatusPlaying {
		t.Errorf("expected play from session toggle, got %s", h.c.State().Status)
	}

	h.session.Trigger(mediasession.Details{Action: mediasession.ActionSeekTo, PositionMs: 7000})
	if got := h.c.State().CurrentTimeMs; got != 7000 {
		t.Errorf("expected seek to 7000, got %d", got)
	}

	h.session.Trigger(mediasession.Details{Action: mediasession.ActionNext})
	h.session.Trigger(mediasession.Details{Action: mediasession.ActionPrevious})
	if h.events.count(EventNextRequested) != 1 || h.events.count(EventPrevRequested) != 1 {
		t.Error("expected next and prev requests")
	}

	h.session.Trigger(mediasession.Details{Action: mediasession.ActionStop})
	if s := h.c.State(); s.Status != StatusPaused || s.CurrentTimeMs != 0 {
		t.Errorf("expected stop to rewind and pause, got %+v", s)
	}
}

func TestStateProgress(t *testing.T) {
	tt := []struct {
		state State
		want  float64
	}{
		{State{CurrentTimeMs: 5000, DurationMs: 10000}, 0.5},
		{State{CurrentTimeMs: 5000}, 0},
		{State{CurrentTimeMs: 20000, DurationMs: 10000}, 1},
	}
	for _, tc := range tt {
		if got := tc.state.Progress(); got != tc.want {
			t.Errorf("Progress(%+v) = %v, want %v", tc.state, got, tc.want)
		}
	}
}
