package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	PrevRegion  key.Binding
	NextRegion  key.Binding
	Family      key.Binding
	Group       key.Binding
	Start       key.Binding
	Stop        key.Binding
	Reboot      key.Binding
	Refresh     key.Binding
	AutoRefresh key.Binding
	Detail      key.Binding
	Search      key.Binding
	Open        key.Binding
	Copy        key.Binding
	Theme       key.Binding
	Help        key.Binding
	Back        key.Binding
	Quit        key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PrevRegion:  key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "prev region")),
		NextRegion:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next region")),
		Family:      key.NewBinding(key.WithKeys("f", "tab"), key.WithHelp("f", "resource type")),
		Group:       key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "resource group")),
		Start:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:        key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "stop")),
		Reboot:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reboot")),
		Refresh:     key.NewBinding(key.WithKeys("R", "ctrl+r"), key.WithHelp("R", "refresh")),
		AutoRefresh: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "auto-refresh")),
		Detail:      key.NewBinding(key.WithKeys("d", "enter"), key.WithHelp("d", "details")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Open:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open console")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		Theme:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Reboot, k.Refresh, k.Detail, k.Search, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevRegion, k.NextRegion, k.Family, k.Group},
		{k.Start, k.Stop, k.Reboot, k.Detail, k.Open, k.Copy},
		{k.Refresh, k.AutoRefresh, k.Search, k.Theme, k.Help, k.Quit},
	}
}
