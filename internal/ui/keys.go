package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	playPause  key.Binding
	next       key.Binding
	prev       key.Binding
	mute       key.Binding
	seekBack   key.Binding
	seekFwd    key.Binding
	volumeUp   key.Binding
	volumeDown key.Binding
	lyricLater key.Binding
	lyricSoon  key.Binding
	lyricReset key.Binding
	search     key.Binding
	focus      key.Binding
	up         key.Binding
	down       key.Binding
	enter      key.Binding
	back       key.Binding
	header     key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		playPause:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),
		mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		seekBack:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "back 5s")),
		seekFwd:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "fwd 5s")),
		volumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		volumeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		lyricLater: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "lyrics later")),
		lyricSoon:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "lyrics sooner")),
		lyricReset: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset sync")),
		search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		focus:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		header:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "header")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.next, k.prev, k.search, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.playPause, k.next, k.prev, k.mute},
		{k.seekBack, k.seekFwd, k.volumeUp, k.volumeDown},
		{k.lyricLater, k.lyricSoon, k.lyricReset, k.header},
		{k.search, k.focus, k.up, k.down, k.enter},
		{k.help, k.quit},
	}
}
