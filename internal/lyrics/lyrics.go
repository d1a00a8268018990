package lyrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type Line struct {
	TimestampMs int64
	Text        string
}

// Track is a parsed lyric document, ordered by timestamp. Lines sharing a
// timestamp keep their document order.
type Track []Line

func (t Track) Len() int { return len(t) }

// IndexAt returns the index of the line active at positionMs, or -1 when
// positionMs precedes the first line.
func (t Track) IndexAt(positionMs int64) int {
	return sort.Search(len(t), func(i int) bool {
		return t[i].TimestampMs > positionMs
	}) - 1
}

// Format serializes the track back to LRC with centisecond precision.
func (t Track) Format() string {
	var b strings.Builder
	for _, line := range t {
		b.WriteString(FormatTimestamp(line.TimestampMs))
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Text returns the lyric without timing, one line per entry.
func (t Track) Text() string {
	texts := make([]string, 0, len(t))
	for _, line := range t {
		texts = append(texts, line.Text)
	}
	return strings.Join(texts, "\n")
}

func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60_000
	seconds := (ms / 1000) % 60
	centis := (ms % 1000) / 10
	return fmt.Sprintf("[%02d:%02d.%02d]", minutes, seconds, centis)
}

// Parse reads an LRC document. Lines without a leading time tag are dropped,
// so a malformed document yields an empty Track rather than an error.
func Parse(raw string) Track {
	if strings.TrimSpace(raw) == "" {
		return Track{}
	}

	rawLines := strings.Split(raw, "\n")
	result := make(Track, 0, len(rawLines))
	var offsetMs int64

	for _, rawLine := range rawLines {
		trimmed := strings.TrimSpace(rawLine)
		if trimmed == "" {
			continue
		}

		stamps, text, offset, hasOffset := splitLrcLine(trimmed)
		if hasOffset {
			offsetMs = offset
		}

		for _, stamp := range stamps {
			result = append(result, Line{TimestampMs: stamp, Text: text})
		}
	}

	if offsetMs != 0 {
		// a positive offset makes lyrics appear sooner
		for i := range result {
			result[i].TimestampMs = shift(result[i].TimestampMs, offsetMs)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

// shift subtracts offsetMs from ts, clamped into [0, MaxInt64].
func shift(ts, offsetMs int64) int64 {
	if offsetMs < 0 && ts > math.MaxInt64+offsetMs {
		return math.MaxInt64
	}
	return max(ts-offsetMs, 0)
}

// splitLrcLine consumes the leading tags of one line. A line may carry
// several time tags ("[00:01.00][00:30.00]chorus").
func splitLrcLine(line string) (stamps []int64, text string, offsetMs int64, hasOffset bool) {
	rest := line

	for strings.HasPrefix(rest, "[") {
		endIndex := strings.Index(rest, "]")
		if endIndex <= 1 {
			break
		}

		tag := rest[1:endIndex]
		if ms, err := parseLrcTime(tag); err == nil {
			stamps = append(stamps, ms)
			rest = rest[endIndex+1:]
			continue
		}

		if len(stamps) == 0 {
			if value, ok := parseOffsetTag(tag); ok {
				return nil, "", value, true
			}
		}
		break
	}

	if len(stamps) == 0 {
		return nil, "", 0, false
	}

	return stamps, strings.TrimSpace(rest), 0, false
}

func parseOffsetTag(tag string) (int64, bool) {
	key, value, found := strings.Cut(tag, ":")
	if !found || !strings.EqualFold(strings.TrimSpace(key), "offset") {
		return 0, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// parseLrcTime accepts mm:ss, mm:ss.xx, mm:ss.xxx, mm:ss:xx and hh:mm:ss.xx.
func parseLrcTime(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("empty time value")
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", raw)
	}
	for _, part := range parts {
		if !isDecimal(part) {
			return 0, fmt.Errorf("invalid time component %q", part)
		}
	}

	var hours, minutes, seconds float64
	var err error

	switch {
	case len(parts) == 2:
		minutes, err = parseFloatSafe(parts[0])
		if err == nil {
			seconds, err = parseFloatSafe(parts[1])
		}
	case strings.Contains(parts[2], "."):
		hours, err = parseFloatSafe(parts[0])
		if err == nil {
			minutes, err = parseFloatSafe(parts[1])
		}
		if err == nil {
			seconds, err = parseFloatSafe(parts[2])
		}
	default:
		// mm:ss:xx, the third field is a fraction of a second
		minutes, err = parseFloatSafe(parts[0])
		if err == nil {
			seconds, err = parseFloatSafe(parts[1] + "." + parts[2])
		}
	}
	if err != nil {
		return 0, err
	}

	total := hours*3600 + minutes*60 + seconds
	if total < 0 {
		return 0, errors.New("negative time not allowed")
	}

	ms := total*1000 + 0.5
	if math.IsNaN(ms) || ms >= math.MaxInt64 {
		return 0, fmt.Errorf("time out of range: %s", raw)
	}
	return int64(ms), nil
}

func isDecimal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		case r < '0' || r > '9':
			return false
		}
	}
	return s != "."
}

func parseFloatSafe(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", s, err)
	}
	return value, nil
}
