// Package artwork loads album covers and derives the player theme from them.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nfnt/resize"

	"karolbroda.com/lyreplay/internal/colors"
)

const (
	gradientSteps = 20
	maxImageBytes = 8 << 20
	dimColor      = "#6272A4"
)

var ErrEmptyURL = errors.New("empty artwork url")

type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Gradient  []string
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       dimColor,
		Gradient:  colors.Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

// Loader fetches covers over HTTP and keeps recently decoded images.
type Loader struct {
	client *http.Client
	cache  *expirable.LRU[string, image.Image]
}

func NewLoader(client *http.Client, size int, ttl time.Duration) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if size <= 0 {
		size = 32
	}
	return &Loader{
		client: client,
		cache:  expirable.NewLRU[string, image.Image](size, nil, ttl),
	}
}

// SizedURL asks the NetEase image CDN for a px square thumbnail. Other hosts
// and URLs that already carry a param are returned unchanged.
func SizedURL(raw string, px int) string {
	u, err := url.Parse(raw)
	if err != nil || px <= 0 || !strings.HasSuffix(u.Hostname(), "music.126.net") {
		return raw
	}
	q := u.Query()
	if q.Has("param") {
		return raw
	}
	q.Set("param", fmt.Sprintf("%dy%d", px, px))
	u.RawQuery = q.Encode()
	return u.String()
}

func (l *Loader) Fetch(ctx context.Context, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, ErrEmptyURL
	}
	if img, ok := l.cache.Get(artworkURL); ok {
		return img, nil
	}

	img, err := l.fetch(ctx, artworkURL)
	if err != nil {
		return nil, err
	}
	l.cache.Add(artworkURL, img)
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, artworkURL string) (image.Image, error) {
	if path, ok := strings.CutPrefix(artworkURL, "file://"); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open artwork file: %w", err)
		}
		defer f.Close()
		return decode(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}
	return decode(io.LimitReader(resp.Body, maxImageBytes))
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

type swatch struct {
	hex        string
	sat        float64
	brightness float64
}

// ExtractPalette clusters the image and picks three vivid, reasonably bright
// colors. Anything that can't be clustered gets the default palette.
func ExtractPalette(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	items, err := prominentcolor.KmeansWithAll(5, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) < 3 {
		return DefaultPalette()
	}

	swatches := make([]swatch, 0, len(items))
	for _, it := range items {
		swatches = append(swatches, measure(it.Color.R, it.Color.G, it.Color.B))
	}

	picked := pick(swatches)
	if len(picked) < 3 {
		return DefaultPalette()
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].brightness > picked[j].brightness })

	primary, accent, secondary := picked[0].hex, picked[1].hex, picked[2].hex
	start, end := smoothestPair(primary, secondary, accent)

	return &Palette{
		Primary:   primary,
		Secondary: secondary,
		Accent:    accent,
		Dim:       dimColor,
		Gradient:  colors.Gradient(start, end, gradientSteps),
	}
}

func measure(r, g, b uint32) swatch {
	hi := float64(max(r, g, b)) / 255
	lo := float64(min(r, g, b)) / 255
	sat := 0.0
	if hi > 0 {
		sat = (hi - lo) / hi
	}
	return swatch{hex: boost(r, g, b, hi), sat: sat, brightness: hi}
}

// pick returns the highest scoring vivid swatch followed by the next two
// distinct swatches that clear a looser bar.
func pick(all []swatch) []swatch {
	score := func(s swatch) float64 {
		d := s.brightness - 0.6
		if d < 0 {
			d = -d
		}
		return s.sat * (1 - d)
	}

	best := -1
	for i, s := range all {
		if s.brightness > 0.3 && s.sat > 0.2 && (best < 0 || score(s) > score(all[best])) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	out := []swatch{all[best]}
	thresholds := []struct{ sat, brightness float64 }{{0.15, 0.3}, {0.1, 0.25}}
	for _, th := range thresholds {
		for _, s := range all {
			if s.sat > th.sat && s.brightness > th.brightness && !contains(out, s.hex) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func contains(list []swatch, hex string) bool {
	for _, s := range list {
		if s.hex == hex {
			return true
		}
	}
	return false
}

// smoothestPair chooses the ordered pair with the least jumpy gradient,
// preferring a brighter start when two pairs are within 5 ΔE of each other.
func smoothestPair(a, b, c string) (string, string) {
	pairs := [][2]string{{a, b}, {a, c}, {b, a}, {b, c}, {c, a}, {c, b}}

	rough := make([]float64, len(pairs))
	best := 0
	for i, p := range pairs {
		rough[i] = colors.Roughness(p[0], p[1], gradientSteps)
		if rough[i] < rough[best] {
			best = i
		}
	}

	floor := rough[best]
	for i, p := range pairs {
		if rough[i]-floor < 5 && colors.Lightness(p[0]) > colors.Lightness(pairs[best][0]) {
			best = i
		}
	}
	return pairs[best][0], pairs[best][1]
}

// boost lifts dark colors and tames washed-out ones so they read on a dark
// terminal background.
func boost(r, g, b uint32, brightness float64) string {
	fr, fg, fb := float64(r), float64(g), float64(b)
	if brightness < 0.4 && brightness > 0 {
		f := min(0.4/brightness, 2.5)
		fr, fg, fb = min(255, fr*f), min(255, fg*f), min(255, fb*f)
	}
	if brightness > 0.85 {
		avg := (fr + fg + fb) / 3
		fr, fg, fb = avg+(fr-avg)*0.7, avg+(fg-avg)*0.7, avg+(fb-avg)*0.7
	}
	return fmt.Sprintf("#%02X%02X%02X", uint8(fr), uint8(fg), uint8(fb))
}

// RenderHalfBlock draws img as width x height cells, two pixels per cell
// using the upper half block with separate fore and background colors.
func RenderHalfBlock(img image.Image, width, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	resized := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	bounds := resized.Bounds()
	hex := func(x, y int) (string, bool) {
		if y >= bounds.Dy() {
			y = bounds.Dy() - 1
		}
		r, g, b, a := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
		return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8), a>>8 >= 128
	}

	lines := make([]string, height)
	for y := range lines {
		var line strings.Builder
		for x := 0; x < bounds.Dx(); x++ {
			top, topOpaque := hex(x, y*2)
			bottom, bottomOpaque := hex(x, y*2+1)
			if !topOpaque && !bottomOpaque {
				line.WriteByte(' ')
				continue
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(top)).Background(lipgloss.Color(bottom))
			line.WriteString(style.Render("▀"))
		}
		lines[y] = line.String()
	}
	return lines
}
