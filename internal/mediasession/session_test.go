package mediasession

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestNoop(t *testing.T) {
	t.Run("Trigger Calls Registered Handler", func(t *testing.T) {
		n := NewNoop()

		var got Details
		n.SetActionHandler(ActionSeekTo, func(d Details) { got = d })

		if !n.Trigger(Details{Action: ActionSeekTo, PositionMs: 4200}) {
			t.Fatal("expected handler to run")
		}
		if got.PositionMs != 4200 {
			t.Errorf("expected position 4200, got %d", got.PositionMs)
		}
	})

	t.Run("Trigger Without Handler", func(t *testing.T) {
		n := NewNoop()
		if n.Trigger(Details{Action: ActionNext}) {
			t.Error("expected false without a handler")
		}
	})

	t.Run("Zero Value Usable", func(t *testing.T) {
		var n Noop
		n.SetActionHandler(ActionPlay, func(Details) {})
		if !n.Trigger(Details{Action: ActionPlay}) {
			t.Error("expected handler on zero-value noop")
		}
	})

	t.Run("Remembers Metadata And Status", func(t *testing.T) {
		n := NewNoop()
		meta := Metadata{TrackID: "1", Title: "t"}
		if err := n.RegisterMetadata(meta); err != nil {
			t.Fatal(err)
		}
		n.PublishStatus(Status{Playback: StatusPaused, PositionMs: 10})

		if n.Metadata() != meta {
			t.Errorf("expected %+v, got %+v", meta, n.Metadata())
		}
		if n.Status().Playback != StatusPaused {
			t.Errorf("expected paused, got %s", n.Status().Playback)
		}
	})
}

func TestActionString(t *testing.T) {
	if ActionNext.String() != "nexttrack" || ActionPrevious.String() != "previoustrack" {
		t.Error("unexpected track action names")
	}
	if Action(99).String() != "unknown" {
		t.Error("expected unknown for out of range action")
	}
}

func TestTrackObjectPath(t *testing.T) {
	tt := []struct {
		id   string
		want dbus.ObjectPath
	}{
		{"", noTrackPath},
		{"12345", "/org/lyreplay/track/12345"},
		{"a-b.c", "/org/lyreplay/track/a_b_c"},
	}

	for _, tc := range tt {
		got := trackObjectPath(tc.id)
		if got != tc.want {
			t.Errorf("trackObjectPath(%q) = %s, want %s", tc.id, got, tc.want)
		}
		if !got.IsValid() {
			t.Errorf("trackObjectPath(%q) is not a valid object path", tc.id)
		}
	}
}

func TestMetadataMap(t *testing.T) {
	t.Run("Full Round Trip", func(t *testing.T) {
		meta := Metadata{
			TrackID:    "186016",
			Title:      "晴天",
			Artist:     "周杰伦/Lara",
			Album:      "叶惠美",
			ArtworkURL: "https://p1.music.126.net/x.jpg",
			DurationMs: 269000,
		}

		md := metadataMap(meta)

		if length, _ := md["mpris:length"].Value().(int64); length != 269_000_000 {
			t.Errorf("expected length in microseconds, got %d", length)
		}
		if artists, _ := md["xesam:artist"].Value().([]string); len(artists) != 2 {
			t.Errorf("expected two artists, got %v", artists)
		}

		back := metadataFromMap(md)
		if back != meta {
			t.Errorf("expected %+v, got %+v", meta, back)
		}
	})

	t.Run("Empty Metadata Has Only Track ID", func(t *testing.T) {
		md := metadataMap(Metadata{})
		if len(md) != 1 {
			t.Errorf("expected only trackid, got %v", md)
		}
		if back := metadataFromMap(md); back.TrackID != "" {
			t.Errorf("expected empty id for no-track path, got %q", back.TrackID)
		}
	})
}

func TestExtractors(t *testing.T) {
	md := map[string]dbus.Variant{
		"xesam:artist": dbus.MakeVariant("solo"),
		"mpris:length": dbus.MakeVariant(uint64(5_000_000)),
		"xesam:title":  dbus.MakeVariant(int32(42)),
	}

	if got := extractArtist(md, "xesam:artist"); got != "solo" {
		t.Errorf("expected plain string artist, got %q", got)
	}
	if got := extractDurationMs(md, "mpris:length"); got != 5000 {
		t.Errorf("expected 5000ms, got %d", got)
	}
	if got := extractString(md, "xesam:title"); got != "" {
		t.Errorf("expected empty for non-string, got %q", got)
	}
	if got := extractString(md, "missing"); got != "" {
		t.Errorf("expected empty for missing key, got %q", got)
	}
	if got := extractDurationMs(map[string]dbus.Variant{"mpris:length": dbus.MakeVariant(int64(-1))}, "mpris:length"); got != 0 {
		t.Errorf("expected 0 for negative length, got %d", got)
	}
}

func TestDecodePropertiesChanged(t *testing.T) {
	sig := &dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{
			mprisPlayerIface,
			map[string]dbus.Variant{
				"Metadata":       dbus.MakeVariant(metadataMap(Metadata{TrackID: "7", Title: "x"})),
				"PlaybackStatus": dbus.MakeVariant("Playing"),
			},
			[]string{},
		},
	}

	events := decodePropertiesChanged(sig)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Metadata == nil || events[0].Metadata.Title != "x" {
		t.Errorf("expected metadata event, got %+v", events[0])
	}
	if events[1].Playback != StatusPlaying {
		t.Errorf("expected playing, got %q", events[1].Playback)
	}

	other := &dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []any{"org.example.Other", map[string]dbus.Variant{}},
	}
	if got := decodePropertiesChanged(other); len(got) != 0 {
		t.Errorf("expected no events for another interface, got %v", got)
	}
}
