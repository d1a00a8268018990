// Package view turns playback state into a presentational tree. It holds no
// state of its own: every render is a pure function of its inputs, and
// interaction regions are bound to controller commands.
package view

import (
	"fmt"
	"math"

	"karolbroda.com/lyreplay/internal/lyrics"
	"karolbroda.com/lyreplay/internal/player"
	"karolbroda.com/lyreplay/internal/track"
)

type Kind int

const (
	KindBox Kind = iota
	KindText
	KindImage
	KindButton
	KindBar
)

type Region string

const (
	RegionNone   Region = ""
	RegionPrev   Region = "prev"
	RegionNext   Region = "next"
	RegionPlay   Region = "play"
	RegionMute   Region = "mute"
	RegionSeek   Region = "seek"
	RegionVolume Region = "volume"
)

const (
	GlyphPrev  = "⏮"
	GlyphNext  = "⏭"
	GlyphPlay  = "▶"
	GlyphPause = "⏸"

	IconMuted = "🔇"
	IconLow   = "🔉"
	IconHigh  = "🔊"
)

// Node is one element of the rendered player. Value is the fill fraction of
// a bar; Src is the image location of an image node.
type Node struct {
	Kind     Kind
	Class    string
	Text     string
	Src      string
	Value    float64
	Region   Region
	Children []Node
}

// Find returns the first node with the given class in depth-first order.
func (n Node) Find(class string) (Node, bool) {
	if n.Class == class {
		return n, true
	}
	for _, child := range n.Children {
		if found, ok := child.Find(class); ok {
			return found, true
		}
	}
	return Node{}, false
}

// Walk visits every node depth-first.
func (n Node) Walk(fn func(Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Action runs a command. arg is the click fraction for bar regions and is
// ignored elsewhere.
type Action func(arg float64)

type Tree struct {
	Root    Node
	Actions map[Region]Action
}

func (t Tree) Empty() bool {
	return len(t.Root.Children) == 0 && t.Root.Class == ""
}

// Dispatch runs the action bound to region and reports whether one existed.
func (t Tree) Dispatch(region Region, arg float64) bool {
	action, ok := t.Actions[region]
	if !ok || action == nil {
		return false
	}
	action(arg)
	return true
}

// Commands is what the view can ask of the player.
type Commands interface {
	TogglePlay()
	ToggleMute()
	SeekFraction(f float64)
	SetVolume(v float64)
	Prev()
	Next()
}

// Render builds the player for t. A nil track renders nothing.
func Render(state player.State, t *track.Track, cue lyrics.Cue, cmds Commands) Tree {
	if t == nil {
		return Tree{Actions: map[Region]Action{}}
	}

	playGlyph := GlyphPlay
	if state.Playing() {
		playGlyph = GlyphPause
	}

	lyric := ""
	if cue.Active() {
		lyric = cue.Line.Text
	}

	root := Node{
		Kind:  KindBox,
		Class: "player",
		Children: []Node{
			{
				Kind:  KindBox,
				Class: "player-left",
				Children: []Node{
					{Kind: KindImage, Class: "player-artwork", Src: t.ArtworkURL},
				},
			},
			{
				Kind:  KindBox,
				Class: "player-right",
				Children: []Node{
					{
						Kind:  KindBox,
						Class: "player-main",
						Children: []Node{
							{
								Kind:  KindBox,
								Class: "player-info",
								Children: []Node{
									{Kind: KindText, Class: "player-title", Text: t.Title},
									{Kind: KindText, Class: "player-artist", Text: t.Subtitle()},
								},
							},
							{
								Kind:  KindBox,
								Class: "player-controls",
								Children: []Node{
									{Kind: KindButton, Class: "player-prev", Text: GlyphPrev, Region: RegionPrev},
									{Kind: KindButton, Class: "player-play", Text: playGlyph, Region: RegionPlay},
									{Kind: KindButton, Class: "player-next", Text: GlyphNext, Region: RegionNext},
									volumeNode(state),
								},
							},
						},
					},
					{
						Kind:  KindBox,
						Class: "progress-container",
						Children: []Node{
							{Kind: KindText, Class: "current-time", Text: FormatTime(state.CurrentTimeMs)},
							{Kind: KindBar, Class: "progress-bar", Value: state.Progress(), Region: RegionSeek},
							{Kind: KindText, Class: "duration", Text: FormatTime(state.DurationMs)},
						},
					},
					{Kind: KindText, Class: "player-lyric", Text: lyric},
				},
			},
		},
	}

	return Tree{Root: root, Actions: bind(cmds)}
}

func volumeNode(state player.State) Node {
	return Node{
		Kind:  KindBox,
		Class: "volume-container",
		Children: []Node{
			{Kind: KindButton, Class: "volume-icon", Text: VolumeIcon(state.Volume), Region: RegionMute},
			{Kind: KindBar, Class: "volume-bar", Value: clampUnit(state.Volume), Region: RegionVolume},
			{Kind: KindText, Class: "volume-percentage", Text: fmt.Sprintf("%d%%", int(math.Round(clampUnit(state.Volume)*100)))},
		},
	}
}

func bind(cmds Commands) map[Region]Action {
	if cmds == nil {
		return map[Region]Action{}
	}
	return map[Region]Action{
		RegionPrev:   func(float64) { cmds.Prev() },
		RegionNext:   func(float64) { cmds.Next() },
		RegionPlay:   func(float64) { cmds.TogglePlay() },
		RegionMute:   func(float64) { cmds.ToggleMute() },
		RegionSeek:   func(f float64) { cmds.SeekFraction(clampUnit(f)) },
		RegionVolume: func(f float64) { cmds.SetVolume(clampUnit(f)) },
	}
}

func VolumeIcon(volume float64) string {
	switch {
	case volume <= 0:
		return IconMuted
	case volume < 0.5:
		return IconLow
	default:
		return IconHigh
	}
}

// FormatTime renders milliseconds as m:ss.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
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
