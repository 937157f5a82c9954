package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	like      key.Binding
	dislike   key.Binding
	playlists key.Binding
	enter     key.Binding
	back      key.Binding
	refill    key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		like:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "like")),
		dislike:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "dislike")),
		playlists: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "playlists")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		refill:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.like, k.dislike, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.like, k.dislike, k.refill},
		{k.playlists, k.enter, k.back},
		{k.quit},
	}
}
