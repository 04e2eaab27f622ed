package ui

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/snoo/internal/fetch"
	"github.com/five82/snoo/internal/logtail"
	"github.com/five82/snoo/internal/nav"
	"github.com/five82/snoo/internal/prefs"
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Machine   *nav.Machine
	Events    <-chan fetch.Event
	ThemeName string
	PrefsPath string
	LogPath   string
}

// notice is a one-shot message in the footer, cleared by the next key press.
type notice struct {
	text string
	err  bool
}

// Model is the root application state for Bubble Tea. It is the only owner of
// the machine and everything behind it.
type Model struct {
	ctx       context.Context
	machine   *nav.Machine
	events    <-chan fetch.Event
	prefsPath string
	logPath   string

	keys    keyMap
	spinner spinner.Model
	theme   Theme
	width   int
	height  int
	ready   bool

	notice notice
	scroll int // lines scrolled into a selected row taller than the body

	showHelp   bool
	showDebug  bool
	debugLines []logtail.Line
	debugErr   error
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	theme := GetTheme(themeName)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = theme.Styles().AccentText

	return Model{
		ctx:       ctx,
		machine:   opts.Machine,
		events:    opts.Events,
		prefsPath: prefsPath,
		logPath:   opts.LogPath,
		keys:      DefaultKeyMap(),
		spinner:   sp,
		theme:     theme,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.ctx, m.events),
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case fetchEventMsg:
		return m.handleFetchEvent(msg)

	case debugLinesMsg:
		m.debugLines = msg.lines
		m.debugErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleFetchEvent(msg fetchEventMsg) (tea.Model, tea.Cmd) {
	c, ok := m.machine.Apply(msg.ev)
	if ok && c.Err != nil {
		m.notice = notice{
			text: fmt.Sprintf("%s: %s", c.Key(), nav.DescribeError(c.Err)),
			err:  true,
		}
	}
	cmds := []tea.Cmd{waitForEvent(m.ctx, m.events)}
	if m.showDebug {
		cmds = append(cmds, loadDebugCmd(m.logPath, m.bodyHeight()))
	}
	return m, tea.Batch(cmds...)
}

// handleKey resolves a key press and drives the machine.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keys.Resolve(msg)

	// Any key closes help, quitting still quits.
	if m.showHelp {
		m.showHelp = false
		if action == ActionQuit {
			return m, tea.Quit
		}
		return m, nil
	}

	m.notice = notice{}
	switch action {
	case ActionUp, ActionDown, ActionPageUp, ActionPageDown:
		// Rows may have changed under the selection since the last key.
		m.scroll = min(m.scroll, m.selectedOverflow())
	default:
		m.scroll = 0
	}

	var err error
	switch action {
	case ActionQuit:
		return m, tea.Quit
	case ActionHelp:
		m.showHelp = true
	case ActionDebug:
		m.showDebug = !m.showDebug
		if m.showDebug {
			return m, loadDebugCmd(m.logPath, m.bodyHeight())
		}
	case ActionCycleTheme:
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = m.theme.Styles().AccentText
		m.savePrefs()
	case ActionUp:
		if m.scroll > 0 {
			m.scroll--
			break
		}
		m.machine.MoveUp()
	case ActionDown:
		if m.scroll < m.selectedOverflow() {
			m.scroll++
			break
		}
		m.scroll = 0
		m.machine.MoveDown()
	case ActionTop:
		m.machine.MoveTo(0)
	case ActionBottom:
		m.machine.MoveTo(-1)
	case ActionPageUp:
		if m.scroll > 0 {
			m.scroll = max(m.scroll-m.pageStep(), 0)
			break
		}
		m.machine.Move(-m.pageStep())
	case ActionPageDown:
		if overflow := m.selectedOverflow(); m.scroll < overflow {
			m.scroll = min(m.scroll+m.pageStep(), overflow)
			break
		}
		m.scroll = 0
		m.machine.Move(m.pageStep())
	case ActionSelect:
		err = m.machine.Select()
	case ActionBack:
		err = m.machine.Back()
	case ActionLoadMore:
		err = m.machine.LoadMore()
	case ActionToggleCollapse:
		err = m.machine.ToggleCollapse()
	case ActionRefresh:
		m.machine.Refresh()
	case ActionCycleSort:
		sort := m.machine.CycleSort()
		m.notice = notice{text: "sort: " + sort.String()}
		m.savePrefs()
	}
	if err != nil {
		m.notice = notice{text: err.Error(), err: !errors.Is(err, nav.ErrAtRoot)}
	}
	return m, nil
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, Sort: m.machine.Sort().String()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		log.Printf("save prefs: %v", err)
	}
}

// selectedOverflow is how many lines of the selected row do not fit in the
// body at once.
func (m Model) selectedOverflow() int {
	vm := m.machine.ViewModel()
	if vm.Selected < 0 || vm.Selected >= len(vm.Rows) {
		return 0
	}
	lines := m.rowLines(vm.Rows[vm.Selected], m.theme.Styles(), true)
	return max(len(lines)-m.bodyHeight(), 0)
}

func (m Model) pageStep() int {
	if step := m.bodyHeight() / 2; step > 1 {
		return step
	}
	return 1
}

// Messages

type fetchEventMsg struct {
	ev fetch.Event
}

type debugLinesMsg struct {
	lines []logtail.Line
	err   error
}

// Commands

// waitForEvent blocks until the scheduler posts an event. The loop re-arms it
// after every event so exactly one wait is outstanding.
func waitForEvent(ctx context.Context, events <-chan fetch.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			return fetchEventMsg{ev: ev}
		case <-ctx.Done():
			return nil
		}
	}
}

func loadDebugCmd(path string, n int) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Tail(path, n)
		return debugLinesMsg{lines: lines, err: err}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Machine == nil {
		return errors.New("ui requires a navigation machine")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Context = ctx

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
