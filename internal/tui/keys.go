package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit key.Binding
	Back key.Binding

	// Timer actions
	Start   key.Binding
	Pause   key.Binding
	Done    key.Binding
	Refresh key.Binding

	// Movement
	Select key.Binding
	Up     key.Binding
	Down   key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Done:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
}
