package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Pause  key.Binding
	Resume key.Binding
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

var keys = keyMap{
	Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Resume: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll")),
	Top:    key.NewBinding(key.WithKeys("home", "g")),
	Bottom: key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "follow")),
}

// help lists the bindings shown in the footer.
func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Pause, k.Resume, k.Up, k.Bottom, k.Quit}
}
