package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the board bindings.
type KeyMap struct {
	Quit    key.Binding
	Refresh key.Binding

	Up    key.Binding
	Down  key.Binding
	Prev  key.Binding
	Next  key.Binding
	Left  key.Binding
	Right key.Binding
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Prev, k.Left, k.Right, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Prev, k.Next}, {k.Left, k.Right, k.Refresh, k.Quit}}
}

var DefaultKeyMap = KeyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev column")),
	Next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next column")),
	Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "move back")),
	Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "move on")),
}
