package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the widget key bindings with built-in help text.
type KeyMap struct {
	Toggle       key.Binding
	IntervalUp   key.Binding
	IntervalDown key.Binding
	Refresh      key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle auto refresh"),
		),
		IntervalUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "interval +1s"),
		),
		IntervalDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "interval -1s"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.IntervalUp, k.IntervalDown, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
