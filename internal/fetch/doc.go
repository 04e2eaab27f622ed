// Package fetch schedules Reddit fetches for the content store.
//
// The Scheduler keeps at most one outstanding fetch per store.Key, runs at
// most MaxInFlight attempts at a time, and retries transient and rate-limited
// failures with capped exponential backoff. Attempts run on their own
// goroutines and report back through Events; the owner of the store drains
// that channel and passes every Event to Handle, which is the only place
// results are written to the store.
//
// Cancellation is cooperative. Cancel marks the fetch, cancels the attempt's
// context and removes the Pending entry; whatever the attempt returns later is
// dropped.
package fetch
