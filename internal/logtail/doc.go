// Package logtail reads the end of snoo's log file for the debug overlay.
//
// Read keeps a ring of the last N lines while scanning the file once, so the
// overlay stays cheap however long the log grows. Tail also tags each line
// with a Level for colouring.
package logtail
