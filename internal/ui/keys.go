package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action is what a key press asks for.
type Action int

const (
	ActionNone Action = iota
	ActionUp
	ActionDown
	ActionTop
	ActionBottom
	ActionPageUp
	ActionPageDown
	ActionSelect
	ActionBack
	ActionLoadMore
	ActionToggleCollapse
	ActionRefresh
	ActionCycleSort
	ActionCycleTheme
	ActionDebug
	ActionHelp
	ActionQuit
)

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	Debug      key.Binding
	CycleTheme key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Select   key.Binding
	Back     key.Binding

	// Content
	LoadMore       key.Binding
	ToggleCollapse key.Binding
	Refresh        key.Binding
	CycleSort      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		Debug: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Toggle debug log"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "Page down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter/l", "Open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "h", "left", "backspace"),
			key.WithHelp("esc/h", "Back"),
		),

		LoadMore: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Load more"),
		),
		ToggleCollapse: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "Fold comment"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Cycle sort"),
		),
	}
}

// Resolve maps a key press to an action. Unbound keys resolve to ActionNone.
func (k keyMap) Resolve(msg tea.KeyMsg) Action {
	switch {
	case key.Matches(msg, k.Quit):
		return ActionQuit
	case key.Matches(msg, k.Help):
		return ActionHelp
	case key.Matches(msg, k.Debug):
		return ActionDebug
	case key.Matches(msg, k.CycleTheme):
		return ActionCycleTheme
	case key.Matches(msg, k.Up):
		return ActionUp
	case key.Matches(msg, k.Down):
		return ActionDown
	case key.Matches(msg, k.Top):
		return ActionTop
	case key.Matches(msg, k.Bottom):
		return ActionBottom
	case key.Matches(msg, k.PageUp):
		return ActionPageUp
	case key.Matches(msg, k.PageDown):
		return ActionPageDown
	case key.Matches(msg, k.Select):
		return ActionSelect
	case key.Matches(msg, k.Back):
		return ActionBack
	case key.Matches(msg, k.LoadMore):
		return ActionLoadMore
	case key.Matches(msg, k.ToggleCollapse):
		return ActionToggleCollapse
	case key.Matches(msg, k.Refresh):
		return ActionRefresh
	case key.Matches(msg, k.CycleSort):
		return ActionCycleSort
	}
	return ActionNone
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Back, k.LoadMore, k.Refresh, k.CycleSort, k.Help, k.Quit}
}

// FullHelp returns key bindings for the help overlay, one group per column.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown},
		{k.Select, k.Back, k.LoadMore, k.ToggleCollapse},
		{k.Refresh, k.CycleSort, k.CycleTheme, k.Debug, k.Help, k.Quit},
	}
}

var helpTitles = []string{"Navigation", "Content", "General"}
