package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit        key.Binding
	Up          key.Binding
	Down        key.Binding
	Enter       key.Binding
	Escape      key.Binding
	Tab         key.Binding
	Refresh     key.Binding
	Retry       key.Binding
	Resolve     key.Binding
	Filter      key.Binding
	Detail      key.Binding
	NextFarm    key.Binding
	PrevFarm    key.Binding
	FocusItems  key.Binding
	FocusFeed   key.Binding
	Inventory   key.Binding
	Submit      key.Binding
	Discard     key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	CycleOption key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Escape:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Retry:       key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "retry category")),
		Resolve:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "mark done")),
		Filter:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		Detail:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "detail")),
		NextFarm:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next farm")),
		PrevFarm:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous farm")),
		FocusItems:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "items")),
		FocusFeed:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activity")),
		Inventory:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inventory")),
		Submit:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "submit")),
		Discard:     key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "discard retry")),
		NextField:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		CycleOption: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "cycle option")),
	}
}
