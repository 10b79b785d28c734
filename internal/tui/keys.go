package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Cancel key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Cancel: key.NewBinding(
			key.WithKeys("c", "ctrl+c"),
			key.WithHelp("c", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "enter", "ctrl+c"),
			key.WithHelp("q", "quit"),
			key.WithDisabled(),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
