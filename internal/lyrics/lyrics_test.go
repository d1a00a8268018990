package lyrics

import (
	"math"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tt := []struct {
		name string
		raw  string
		want Track
	}{
		{
			name: "empty input",
			raw:  "",
			want: Track{},
		},
		{
			name: "whitespace only",
			raw:  "  \n\n\t",
			want: Track{},
		},
		{
			name: "simple document",
			raw:  "[00:00.00]a\n[00:05.00]b\n[00:10.00]c",
			want: Track{{0, "a"}, {5000, "b"}, {10000, "c"}},
		},
		{
			name: "millisecond precision",
			raw:  "[01:02.345]x",
			want: Track{{62345, "x"}},
		},
		{
			name: "centiseconds round to milliseconds",
			raw:  "[00:12.34]x",
			want: Track{{12340, "x"}},
		},
		{
			name: "no fraction",
			raw:  "[00:07]x",
			want: Track{{7000, "x"}},
		},
		{
			name: "colon separated fraction",
			raw:  "[01:02:50]x",
			want: Track{{62500, "x"}},
		},
		{
			name: "hours",
			raw:  "[01:00:00.00]x",
			want: Track{{3_600_000, "x"}},
		},
		{
			name: "multiple tags on one line",
			raw:  "[00:10.00][00:01.00]chorus\n[00:05.00]verse",
			want: Track{{1000, "chorus"}, {5000, "verse"}, {10000, "chorus"}},
		},
		{
			name: "equal timestamps keep document order",
			raw:  "[00:01.00]x\n[00:01.00]y\n[00:00.50]z",
			want: Track{{500, "z"}, {1000, "x"}, {1000, "y"}},
		},
		{
			name: "malformed lines dropped",
			raw:  "[ar:someone]\n[ti:title]\nno tag at all\n[xx:yy]bad\n[00:02.00]ok\n[]empty",
			want: Track{{2000, "ok"}},
		},
		{
			name: "blank text kept",
			raw:  "[00:01.00]a\n[00:03.00]\n[00:04.00]b",
			want: Track{{1000, "a"}, {3000, ""}, {4000, "b"}},
		},
		{
			name: "crlf line endings",
			raw:  "[00:01.00]a\r\n[00:02.00]b\r\n",
			want: Track{{1000, "a"}, {2000, "b"}},
		},
		{
			name: "positive offset shifts earlier and clamps",
			raw:  "[offset:500]\n[00:01.00]a\n[00:00.20]b",
			want: Track{{0, "b"}, {500, "a"}},
		},
		{
			name: "negative offset shifts later",
			raw:  "[offset:-250]\n[00:01.00]a",
			want: Track{{1250, "a"}},
		},
		{
			name: "out of range time tag dropped",
			raw:  "[99999999999999999:00.00]huge\n[00:01.00]one",
			want: Track{{1000, "one"}},
		},
		{
			name: "huge hour field dropped",
			raw:  "[9999999999999999999:00:00.00]huge\n[00:02.00]two",
			want: Track{{2000, "two"}},
		},
		{
			name: "negative offset near the limit saturates",
			raw:  "[offset:-9223372036854775807]\n[00:01.00]a",
			want: Track{{math.MaxInt64, "a"}},
		},
		{
			name: "fully unparseable",
			raw:  "hello\nworld\n[by:nobody]",
			want: Track{},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.raw)
			if got == nil {
				t.Fatal("expected non-nil track")
			}
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestTrack(t *testing.T) {
	t.Run("Format Round Trip Preserves Order", func(t *testing.T) {
		original := Parse("[00:03.10]c\n[00:01.00]a\n[00:01.00]b\n[01:15.99]d")
		again := Parse(original.Format())

		if !reflect.DeepEqual(original, again) {
			t.Errorf("round trip changed track:\n%v\n%v", original, again)
		}
	})

	t.Run("FormatTimestamp", func(t *testing.T) {
		tt := []struct {
			ms   int64
			want string
		}{
			{0, "[00:00.00]"},
			{5000, "[00:05.00]"},
			{62345, "[01:02.34]"},
			{-10, "[00:00.00]"},
		}
		for _, tc := range tt {
			if got := FormatTimestamp(tc.ms); got != tc.want {
				t.Errorf("FormatTimestamp(%d) = %s, want %s", tc.ms, got, tc.want)
			}
		}
	})

	t.Run("Text", func(t *testing.T) {
		got := Parse("[00:01.00]a\n[00:02.00]b").Text()
		if got != "a\nb" {
			t.Errorf("expected 'a\\nb', got %q", got)
		}
	})

	t.Run("IndexAt", func(t *testing.T) {
		tr := Track{{1000, "a"}, {2000, "b"}, {2000, "c"}, {3000, "d"}}
		tt := []struct {
			pos  int64
			want int
		}{
			{0, -1},
			{999, -1},
			{1000, 0},
			{1999, 0},
			{2000, 2},
			{2999, 2},
			{3000, 3},
			{999999, 3},
		}
		for _, tc := range tt {
			if got := tr.IndexAt(tc.pos); got != tc.want {
				t.Errorf("IndexAt(%d) = %d, want %d", tc.pos, got, tc.want)
			}
		}

		if got := (Track{}).IndexAt(100); got != -1 {
			t.Errorf("expected -1 for empty track, got %d", got)
		}
	})
}
