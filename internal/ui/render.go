package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/five82/snoo/internal/nav"
)

const (
	maxBodyLines   = 6
	maxHeaderLines = 12
	minWrapWidth   = 20
	ellipsis       = "…"
)

// renderMain renders header, content and footer.
func (m Model) renderMain() string {
	vm := m.machine.ViewModel()

	var b strings.Builder
	b.WriteString(m.renderHeader(vm))
	b.WriteString("\n")
	if m.showDebug {
		b.WriteString(m.renderDebug())
	} else {
		b.WriteString(m.renderRows(vm))
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// bodyHeight is the number of lines between header and footer.
func (m Model) bodyHeight() int {
	if h := m.height - 2; h > 0 {
		return h
	}
	return 1
}

// renderHeader renders the logo, breadcrumb, sort and fetch status.
func (m Model) renderHeader(vm nav.ViewModel) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("snoo", styles.Logo)}
	if len(vm.Breadcrumb) > 0 {
		crumbs := make([]string, len(vm.Breadcrumb))
		for i, c := range vm.Breadcrumb {
			style := styles.MutedText
			if i == len(vm.Breadcrumb)-1 {
				style = styles.Text.Bold(true)
			}
			crumbs[i] = bg.Render(c, style)
		}
		parts = append(parts, bg.Join(crumbs, " › "))
	}
	parts = append(parts, bg.Render("sort:", styles.FaintText)+bg.Spaces(1)+bg.Render(vm.Sort.String(), styles.AccentText))

	if badge := m.statusBadge(vm.Status, styles, bg); badge != "" {
		parts = append(parts, badge)
	}

	line := bg.Join(parts, "  ")
	return styles.Header.Width(m.width).Render(truncate(line, m.width-2, ellipsis))
}

func (m Model) statusBadge(st nav.Status, styles Styles, bg BgStyle) string {
	switch st.Kind {
	case nav.StatusIdle:
		return ""
	case nav.StatusLoading, nav.StatusRefreshing, nav.StatusRetrying:
		return m.spinner.View() + bg.Spaces(1) + styles.StatusStyle(st.Kind).Render(st.Message)
	default:
		return styles.StatusStyle(st.Kind).Render(st.Message)
	}
}

// renderFooter shows the pending notice, or the short help.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	var content string
	switch {
	case m.notice.text != "" && m.notice.err:
		content = bg.Render(m.notice.text, styles.DangerText)
	case m.notice.text != "":
		content = bg.Render(m.notice.text, styles.InfoText)
	default:
		var parts []string
		for _, binding := range m.keys.ShortHelp() {
			h := binding.Help()
			parts = append(parts, bg.Render(h.Key, styles.WarningText)+bg.Spaces(1)+bg.Render(h.Desc, styles.MutedText))
		}
		content = bg.Join(parts, "  ")
	}
	return styles.Footer.Width(m.width).Render(truncate(content, m.width-2, ellipsis))
}

// renderRows renders the rows of the active view, scrolled so the selected
// row is fully visible. A selected row taller than the body is shown from
// m.scroll lines into it.
func (m Model) renderRows(vm nav.ViewModel) string {
	height := m.bodyHeight()
	styles := m.theme.Styles()

	if len(vm.Rows) == 0 {
		msg := "Nothing here yet."
		if vm.Status.Kind == nav.StatusLoading || vm.Status.Kind == nav.StatusRetrying {
			msg = m.spinner.View() + " " + vm.Status.Message
		}
		return padLines([]string{styles.MutedText.Render(" " + msg)}, height)
	}

	var lines []string
	selStart, selEnd := 0, 0
	for i, row := range vm.Rows {
		block := m.rowLines(row, styles, i == vm.Selected)
		if i == vm.Selected {
			selStart = len(lines)
			selEnd = selStart + len(block)
			for j, l := range block {
				block[j] = styles.Selected.Width(m.width).Render(ansi.Strip(l))
			}
		}
		lines = append(lines, block...)
	}

	offset := 0
	if selEnd > height {
		offset = selEnd - height
	}
	if offset > selStart {
		offset = selStart + min(m.scroll, selEnd-selStart-height)
	}
	end := min(offset+height, len(lines))
	return padLines(lines[offset:end], height)
}

// rowLines renders one row, each line already fitted to the width. Bodies
// are word-wrapped; the selected row shows its whole body, others are cut
// after a few lines.
func (m Model) rowLines(row nav.Row, styles Styles, selected bool) []string {
	var out []string
	add := func(s string) {
		out = append(out, truncate(s, m.width, ellipsis))
	}
	bodyLimit, headerLimit := maxBodyLines, maxHeaderLines
	if selected {
		bodyLimit, headerLimit = 0, 0
	}

	switch row.Kind {
	case nav.RowSubreddit:
		line := " " + styles.AccentText.Render(row.Title) + "  " + styles.MutedText.Render(row.Meta)
		if row.Body != "" {
			line += "  " + styles.FaintText.Render(flatten(row.Body))
		}
		add(line)

	case nav.RowPost:
		add(" " + styles.Text.Render(flatten(row.Title)))
		add("   " + styles.MutedText.Render(row.Meta))

	case nav.RowLoadMore:
		add(" " + styles.InfoText.Render("↓ "+row.Title))

	case nav.RowPostHeader:
		for _, l := range bodyLines(flatten(row.Title), m.width-1, 0) {
			add(" " + styles.Text.Bold(true).Render(l))
		}
		add(" " + styles.MutedText.Render(row.Meta))
		for _, l := range bodyLines(row.Body, m.width-1, headerLimit) {
			add(" " + styles.Text.Render(l))
		}
		add("")

	case nav.RowComment:
		guide := m.guide(row.Depth, styles)
		head := guide + styles.AccentText.Render(row.Title) + " " + styles.MutedText.Render(row.Meta)
		if row.Collapsed {
			head += " " + styles.FaintText.Render(fmt.Sprintf("[+%d]", row.Hidden+1))
			add(head)
			break
		}
		add(head)
		for _, l := range bodyLines(row.Body, m.width-ansi.StringWidth(guide), bodyLimit) {
			add(guide + styles.Text.Render(l))
		}

	case nav.RowMoreComments:
		label := "↳ " + row.Title
		if row.Loading {
			label = m.spinner.View() + " loading replies"
		}
		add(m.guide(row.Depth, styles) + styles.InfoText.Render(label))

	case nav.RowPlaceholder:
		add(" " + styles.DangerText.Render(row.Title))
		if row.Body != "" {
			add("   " + styles.MutedText.Render(row.Body))
		}
	}
	return out
}

// guide draws the indent for a comment at depth, one colored bar per level.
func (m Model) guide(depth int, styles Styles) string {
	var b strings.Builder
	b.WriteString(" ")
	for d := 0; d < depth; d++ {
		b.WriteString(styles.ThreadStyle(d).Render("│ "))
	}
	return b.String()
}

// renderHelp renders the help overlay from the key map.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	groups := m.keys.FullHelp()
	for i, group := range groups {
		b.WriteString(styles.AccentText.Bold(true).Render(helpTitles[i]))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			keyStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Warning)).
				Width(12)
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(groups)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Press any key to close"))

	box := styles.Overlay.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderDebug shows the tail of the log file in place of the rows.
func (m Model) renderDebug() string {
	styles := m.theme.Styles()
	height := m.bodyHeight()

	title := styles.AccentText.Bold(true).Render(" debug log") + "  " + styles.FaintText.Render(m.logPath)
	lines := []string{truncate(title, m.width, ellipsis)}
	switch {
	case m.logPath == "":
		lines = append(lines, styles.MutedText.Render(" logging is disabled"))
	case m.debugErr != nil:
		lines = append(lines, styles.DangerText.Render(" "+m.debugErr.Error()))
	case len(m.debugLines) == 0:
		lines = append(lines, styles.MutedText.Render(" log is empty"))
	default:
		tail := m.debugLines
		if len(tail) > height-1 {
			tail = tail[len(tail)-(height-1):]
		}
		for _, l := range tail {
			lines = append(lines, truncate(" "+styles.LogStyle(l.Level).Render(l.Text), m.width, ellipsis))
		}
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return padLines(lines, height)
}

// bodyLines word-wraps text to width cells and keeps at most limit lines,
// marking the cut. A limit of zero keeps every line; a width of zero leaves
// lines unwrapped.
func bodyLines(text string, width, limit int) []string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\t", "    ")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if width > 0 {
		text = ansi.Wrap(text, max(width, minWrapWidth), "")
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
		last := lines[limit-1]
		if width > 0 {
			last = ansi.Truncate(last, max(width, minWrapWidth)-2, "")
		}
		lines[limit-1] = last + " " + ellipsis
	}
	return lines
}

// truncate cuts s to width display cells. A width of zero or less leaves s
// alone; the terminal size is not known before the first resize.
func truncate(s string, width int, tail string) string {
	if width <= 0 {
		return s
	}
	return ansi.Truncate(s, width, tail)
}

// flatten folds text onto one line.
func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// padLines joins lines and pads with empty lines up to height.
func padLines(lines []string, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
