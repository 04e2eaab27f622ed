package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestResolve(t *testing.T) {
	keys := DefaultKeyMap()
	tests := []struct {
		msg  tea.KeyMsg
		want Action
	}{
		{keyMsg("j"), ActionDown},
		{tea.KeyMsg{Type: tea.KeyDown}, ActionDown},
		{keyMsg("k"), ActionUp},
		{tea.KeyMsg{Type: tea.KeyUp}, ActionUp},
		{keyMsg("g"), ActionTop},
		{keyMsg("G"), ActionBottom},
		{tea.KeyMsg{Type: tea.KeyCtrlD}, ActionPageDown},
		{tea.KeyMsg{Type: tea.KeyCtrlU}, ActionPageUp},
		{keyMsg("enter"), ActionSelect},
		{keyMsg("l"), ActionSelect},
		{keyMsg("esc"), ActionBack},
		{keyMsg("h"), ActionBack},
		{tea.KeyMsg{Type: tea.KeyBackspace}, ActionBack},
		{keyMsg("m"), ActionLoadMore},
		{keyMsg("space"), ActionToggleCollapse},
		{keyMsg("r"), ActionRefresh},
		{keyMsg("s"), ActionCycleSort},
		{keyMsg("T"), ActionCycleTheme},
		{keyMsg("D"), ActionDebug},
		{keyMsg("?"), ActionHelp},
		{keyMsg("q"), ActionQuit},
		{keyMsg("ctrl+c"), ActionQuit},
		{keyMsg("x"), ActionNone},
	}
	for _, tt := range tests {
		if got := keys.Resolve(tt.msg); got != tt.want {
			t.Errorf("Resolve(%q) = %d, want %d", tt.msg.String(), got, tt.want)
		}
	}
}

func TestFullHelpHasTitles(t *testing.T) {
	if got, want := len(DefaultKeyMap().FullHelp()), len(helpTitles); got != want {
		t.Fatalf("FullHelp has %d groups, want %d titles", got, want)
	}
}
