// Package app is the composition root of snoo.
//
// # Overview
//
// Run loads configuration and preferences, points the standard logger at the
// log file (the terminal belongs to the UI), wires the browsing core together
// and hands it to the UI, blocking until the user quits or the context is
// cancelled:
//
//	config.Load ─> setupLogging ─> prefs.Load
//	     │
//	     └─> newSession
//	           ├─> reddit.NewClient   HTTP client for the public JSON API
//	           ├─> store.New          bounded content cache
//	           ├─> fetch.New          deduplicating, retrying fetch scheduler
//	           ├─> comments.NewBuilder
//	           └─> nav.New            navigation stack, starts on the directory
//	     │
//	     └─> ui.Run                   Bubble Tea loop, owns everything above
//
// # Error Handling
//
// Only configuration, logging and core construction failures are returned;
// they make the process exit non-zero. Fetch failures never reach Run: the
// scheduler records them in the store and the UI shows them as status
// messages.
package app
