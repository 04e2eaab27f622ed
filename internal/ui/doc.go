// Package ui is snoo's terminal front end, built on Bubble Tea.
//
// The Model is the single owner of the navigation machine and, through it, the
// content store, the comment trees and the fetch scheduler's bookkeeping. Fetch
// workers never touch that state: they post events on the scheduler channel,
// and a waitForEvent command delivers each one to Update, which applies it
// through nav.Machine.Apply and re-arms the wait.
//
// # Rendering
//
// View draws nav.Machine.ViewModel with lipgloss: a header with breadcrumb,
// sort order and a fetch status badge, the rows of the active view, and a
// footer that shows either the last notice or the short key help. Rows are
// truncated to the terminal width with charmbracelet/x/ansi, and the list is
// scrolled so the selected row is always fully visible.
//
// # Key Bindings
//
//   - j/k, g/G, ctrl+d/ctrl+u: move the selection
//   - enter or l: open the selected subreddit or post, expand replies
//   - esc or h: go back
//   - m: load the next page or the post's remaining comments
//   - space: fold or unfold the selected comment
//   - r: refresh the current view, s: cycle the sort order
//   - T: cycle theme, D: debug log, ?: help, q or ctrl+c: quit
package ui
