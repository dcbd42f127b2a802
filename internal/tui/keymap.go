package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the review shortcuts. Row navigation is handled by the
// candidate table.
type KeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Skip   key.Binding
	Back   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Accept: key.NewBinding(
			key.WithKeys("a", "enter"),
			key.WithHelp("a/enter", "accept"),
		),
		Reject: key.NewBinding(
			key.WithKeys("r", "x"),
			key.WithHelp("r", "reject"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s", "n", "right"),
			key.WithHelp("s/→", "skip"),
		),
		Back: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p/←", "previous"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Skip, k.Back, k.Quit}
}
