// Package config loads snoo's TOML configuration.
//
// # Overview
//
// Load reads ~/.config/snoo/config.toml (or an explicit path) and fills in
// defaults for anything missing. A missing file is not an error. A file that
// does not parse, names an unknown sort or carries an invalid duration is.
//
// # TOML Format
//
//	subs = ["golang", "rust", "programming"]
//	default_sort = "hot"            # hot, new, top, rising, best
//	user_agent = "snoo/0.1 (terminal reddit browser)"
//	api_base = "https://www.reddit.com"
//	page_size = 25
//	cache_capacity = 256
//	max_in_flight = 4
//	log_file = "~/.local/state/snoo/snoo.log"
//
//	[retry]
//	max_attempts = 3
//	base_delay = "500ms"
//	max_delay = "30s"
//	attempt_timeout = "10s"
//
//	[comments]
//	limit = 200                     # comments requested with the first fragment
//	more_batch = 100                # ids per morechildren request
//
// Strings are trimmed and paths may start with ~. Non-positive numbers fall
// back to the defaults.
package config
