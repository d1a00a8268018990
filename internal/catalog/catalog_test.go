package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const playlistDetailJSON = `{
  "code": 200,
  "playlist": {
    "id": 2905047708,
    "name": "late night",
    "coverImgUrl": "https://p1.music.126.net/cover.jpg",
    "tracks": [
      {"id": 186016, "name": "晴天", "ar": [{"id": 6452, "name": "周杰伦"}], "al": {"id": 18905, "name": "叶惠美", "picUrl": "https://p1.music.126.net/a.jpg"}, "dt": 269000},
      {"id": 5257138, "name": "duet", "ar": [{"name": "a"}, {"name": "b"}], "al": {"name": "x"}, "dt": 200000}
    ]
  }
}`

const searchSongsJSON = `{
  "code": 200,
  "result": {
    "songs": [
      {"id": 1, "name": "found", "artists": [{"name": "someone"}], "album": {"id": 2, "name": "record"}, "duration": 123000}
    ]
  }
}`

const searchPlaylistsJSON = `{
  "code": 200,
  "result": {
    "playlists": [
      {"id": 77, "name": "mix", "coverImgUrl": "c.jpg", "trackCount": 12, "creator": {"nickname": "dj"}}
    ]
  }
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestPlaylist(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlist/detail" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("id") != "2905047708" {
			t.Errorf("unexpected id %q", r.URL.Query().Get("id"))
		}
		hits.Add(1)
		w.Write([]byte(playlistDetailJSON))
	}))

	pl, err := c.Playlist(context.Background(), "2905047708")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("Maps Tracks", func(t *testing.T) {
		if pl.Name != "late night" || pl.Len() != 2 {
			t.Fatalf("unexpected playlist %+v", pl)
		}
		first := pl.Tracks[0]
		if first.ID != "186016" || first.Title != "晴天" || first.Artist != "周杰伦" {
			t.Errorf("unexpected track %+v", first)
		}
		if first.Album != "叶惠美" || first.ArtworkURL != "https://p1.music.126.net/a.jpg" {
			t.Errorf("unexpected album fields %+v", first)
		}
		if first.DurationMs != 269000 {
			t.Errorf("expected 269000ms, got %d", first.DurationMs)
		}
		if pl.Tracks[1].Artist != "a/b" {
			t.Errorf("expected joined artists, got %q", pl.Tracks[1].Artist)
		}
	})

	t.Run("Cached For The Session", func(t *testing.T) {
		if _, err := c.Playlist(context.Background(), "2905047708"); err != nil {
			t.Fatal(err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected one request, got %d", hits.Load())
		}
	})
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "1":
			w.Write([]byte(searchSongsJSON))
		case "1000":
			w.Write([]byte(searchPlaylistsJSON))
		default:
			w.Write([]byte(`{"code":200,"result":{}}`))
		}
	}))

	t.Run("Songs Use Search Shape", func(t *testing.T) {
		res, err := c.Search(context.Background(), "found", SearchSongs)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(res.Tracks))
		}
		got := res.Tracks[0]
		if got.Artist != "someone" || got.Album != "record" || got.DurationMs != 123000 {
			t.Errorf("unexpected track %+v", got)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		res, err := c.Search(context.Background(), "mix", SearchPlaylists)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Playlists) != 1 || res.Playlists[0].Creator != "dj" || res.Playlists[0].TrackCount != 12 {
			t.Errorf("unexpected playlists %+v", res.Playlists)
		}
	})

	t.Run("Blank Keyword Skips Request", func(t *testing.T) {
		res, err := c.Search(context.Background(), "   ", SearchSongs)
		if err != nil || len(res.Tracks) != 0 {
			t.Errorf("expected empty result, got %+v err=%v", res, err)
		}
	})
}

func TestLyric(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Query().Get("id") {
		case "1":
			w.Write([]byte(`{"code":200,"lrc":{"lyric":"[00:01.00]hi"},"tlyric":{"lyric":"[00:01.00]你好"}}`))
		default:
			w.Write([]byte(`{"code":200,"nolyric":true}`))
		}
	}))

	raw, err := c.Lyric(context.Background(), "1")
	if err != nil || raw != "[00:01.00]hi" {
		t.Errorf("expected lrc text, got %q err=%v", raw, err)
	}

	doc, err := c.LyricDocument(context.Background(), "1")
	if err != nil || doc.Translation != "[00:01.00]你好" {
		t.Errorf("expected translation layer, got %+v err=%v", doc, err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected lyric document to be cached, got %d requests", hits.Load())
	}

	raw, err = c.Lyric(context.Background(), "2")
	if err != nil || raw != "" {
		t.Errorf("expected empty lyric for instrumental, got %q err=%v", raw, err)
	}
}

func TestTrackURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song/url/v1" || r.URL.Query().Get("level") != "exhigh" {
			t.Errorf("unexpected request %s", r.URL)
		}
		switch r.URL.Query().Get("id") {
		case "1":
			w.Write([]byte(`{"code":200,"data":[{"id":1,"url":"https://m701.music.126.net/1.mp3"}]}`))
		default:
			w.Write([]byte(`{"code":200,"data":[{"id":2,"url":null}]}`))
		}
	}))

	url, err := c.TrackURL(context.Background(), "1")
	if err != nil || url != "https://m701.music.126.net/1.mp3" {
		t.Errorf("expected url, got %q err=%v", url, err)
	}

	url, err = c.TrackURL(context.Background(), "2")
	if err != nil || url != "" {
		t.Errorf("expected empty url for unavailable track, got %q err=%v", url, err)
	}
}

func TestErrors(t *testing.T) {
	tt := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			status: http.StatusBadGateway,
		},
		{
			name: "catalog code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":404,"msg":"gone"}`))
			},
			status: 404,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>`))
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)

			_, err := c.TopPlaylists(context.Background())
			if !errors.Is(err, ErrMetadataFetch) {
				t.Fatalf("expected ErrMetadataFetch, got %v", err)
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %T", err)
			}
			if fe.Status != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, fe.Status)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for non-http scheme")
	}

	c, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("expected default base url, got %s", c.BaseURL())
	}
	if got := c.FallbackURL("186016"); got != "https://music.163.com/song/media/outer/url?id=186016.mp3" {
		t.Errorf("unexpected fallback %s", got)
	}
	if c.FallbackURL("") != "" {
		t.Error("expected empty fallback for empty id")
	}
}

func TestParseSearchType(t *testing.T) {
	tt := map[string]SearchType{
		"song":     SearchSongs,
		"":         SearchSongs,
		"albums":   SearchAlbums,
		"playlist": SearchPlaylists,
		"1000":     SearchPlaylists,
	}
	for in, want := range tt {
		got, ok := ParseSearchType(in)
		if !ok || got != want {
			t.Errorf("ParseSearchType(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseSearchType("video"); ok {
		t.Error("expected video to be rejected")
	}
}
