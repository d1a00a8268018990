// Package catalog is a client for the NetEase cloud-music API proxy. It maps
// the proxy's JSON into track types and never exposes wire shapes.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"karolbroda.com/lyreplay/internal/track"
)

const (
	DefaultBaseURL         = "https://netease-cloud-music-buh0oe6sg-song940.vercel.app"
	DefaultFallbackPattern = "https://music.163.com/song/media/outer/url?id=%s.mp3"
	DefaultTimeout         = 10 * time.Second
	DefaultRate            = 5
	DefaultCacheSize       = 128
	DefaultCacheTTL        = 30 * time.Minute

	userAgent = "lyreplay/1.0"
)

var ErrMetadataFetch = errors.New("catalog metadata fetch failed")

// FetchError describes a failed catalog request. errors.Is(err,
// ErrMetadataFetch) holds for every FetchError.
type FetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrMetadataFetch }

type Options struct {
	BaseURL         string
	FallbackPattern string
	Timeout         time.Duration
	// RequestsPerSecond caps outgoing requests; 0 uses DefaultRate.
	RequestsPerSecond float64
	CacheSize         int
	CacheTTL          time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
}

type Client struct {
	base      *url.URL
	fallback  string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	lyrics    *expirable.LRU[string, LyricDocument]
	playlists *expirable.LRU[string, track.Playlist]
	logger    *log.Logger
}

func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog url %q: scheme must be http or https", raw)
	}

	fallback := opts.FallbackPattern
	if fallback == "" {
		fallback = DefaultFallbackPattern
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRate
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}

	return &Client{
		base:      base,
		fallback:  fallback,
		timeout:   timeout,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Limit(rps), int(max(rps, 1))),
		lyrics:    expirable.NewLRU[string, LyricDocument](size, nil, ttl),
		playlists: expirable.NewLRU[string, track.Playlist](size, nil, ttl),
		logger:    logger,
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) BaseURL() string { return c.base.String() }

// FallbackURL is the catalog's direct media link for id. It needs no lookup
// but is not guaranteed to play.
func (c *Client) FallbackURL(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf(c.fallback, url.QueryEscape(id))
}

func (c *Client) TopPlaylists(ctx context.Context) ([]track.PlaylistSummary, error) {
	var resp playlistsResponse
	if err := c.get(ctx, "/top/playlist", nil, &resp); err != nil {
		return nil, err
	}
	return toSummaries(resp.Playlists), nil
}

func (c *Client) HighQualityPlaylists(ctx context.Context) ([]track.PlaylistSummary, error) {
	var resp playlistsResponse
	if err := c.get(ctx, "/top/playlist/highquality", nil, &resp); err != nil {
		return nil, err
	}
	return toSummaries(resp.Playlists), nil
}

func (c *Client) HotCategories(ctx context.Context) ([]Category, error) {
	var resp hotResponse
	if err := c.get(ctx, "/playlist/hot", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(resp.Tags))
	for _, tag := range resp.Tags {
		out = append(out, Category{ID: tag.ID, Name: tag.Name})
	}
	return out, nil
}

func (c *Client) UserPlaylists(ctx context.Context, uid string) ([]track.PlaylistSummary, error) {
	var resp userPlaylistsResponse
	if err := c.get(ctx, "/user/playlist", url.Values{"uid": {uid}}, &resp); err != nil {
		return nil, err
	}
	return toSummaries(resp.Playlist), nil
}

func (c *Client) Playlist(ctx context.Context, id string) (track.Playlist, error) {
	if cached, ok := c.playlists.Get(id); ok {
		return cached, nil
	}

	var resp playlistDetailResponse
	if err := c.get(ctx, "/playlist/detail", url.Values{"id": {id}}, &resp); err != nil {
		return track.Playlist{}, err
	}
	if resp.Playlist == nil {
		return track.Playlist{}, &FetchError{Endpoint: "/playlist/detail", Err: fmt.Errorf("playlist %s not found", id)}
	}

	pl := resp.Playlist.toPlaylist()
	c.playlists.Add(id, pl)
	return pl, nil
}

func (c *Client) NewestAlbums(ctx context.Context) ([]track.Album, error) {
	var resp albumsResponse
	if err := c.get(ctx, "/album/newest", nil, &resp); err != nil {
		return nil, err
	}
	return toAlbums(resp.Albums), nil
}

func (c *Client) TopAlbums(ctx context.Context) ([]track.Album, error) {
	var resp albumsResponse
	if err := c.get(ctx, "/top/album", nil, &resp); err != nil {
		return nil, err
	}
	albums := resp.Albums
	if len(albums) == 0 {
		albums = append(resp.WeekData, resp.MonthData...)
	}
	return toAlbums(albums), nil
}

func (c *Client) LyricDocument(ctx context.Context, id string) (LyricDocument, error) {
	if cached, ok := c.lyrics.Get(id); ok {
		return cached, nil
	}

	var resp lyricResponse
	if err := c.get(ctx, "/lyric", url.Values{"id": {id}}, &resp); err != nil {
		return LyricDocument{}, err
	}

	doc := LyricDocument{
		Original:    resp.Lrc.text(),
		Translation: resp.Tlyric.text(),
		Karaoke:     resp.Klyric.text(),
	}
	c.lyrics.Add(id, doc)
	return doc, nil
}

// Lyric returns the raw LRC text for a track, or "" when it has none.
func (c *Client) Lyric(ctx context.Context, id string) (string, error) {
	doc, err := c.LyricDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Original, nil
}

func (c *Client) Search(ctx context.Context, keyword string, kind SearchType) (SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return SearchResult{}, nil
	}

	params := url.Values{
		"keywords": {keyword},
		"type":     {strconv.Itoa(int(kind))},
	}
	var resp searchResponse
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return SearchResult{}, err
	}
	if resp.Result == nil {
		return SearchResult{}, nil
	}

	return SearchResult{
		Tracks:    toTracks(resp.Result.Songs),
		Albums:    toAlbums(resp.Result.Albums),
		Playlists: toSummaries(resp.Result.Playlists),
	}, nil
}

// TrackURL returns the streaming URL for a track, or "" when the catalog
// has none to offer.
func (c *Client) TrackURL(ctx context.Context, id string) (string, error) {
	params := url.Values{"id": {id}, "level": {"exhigh"}}
	var resp songURLResponse
	if err := c.get(ctx, "/song/url/v1", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].URL, nil
}

func (c *Client) get(parentCtx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(parentCtx); err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + endpoint
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to build http request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog request", "endpoint", endpoint, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body)))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode json: %w", err)}
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return &FetchError{Endpoint: endpoint, Status: env.Code, Err: errors.New("catalog reported an error")}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode json: %w", err)}
	}
	return nil
}
