// Package store is the content cache shared by the fetch scheduler, the
// comment tree builder and the navigation state machine.
//
// # Overview
//
// Every page of Reddit content the browser has asked for lives here under a
// Key. A Key names one fetchable unit: a page of the subreddit directory, a
// page of one subreddit's listing in one sort order, or one comment fragment
// of a post. The Entry stored under it is in one of three states:
//
//	Pending  a fetch is outstanding; the payload may be absent
//	Ready    the payload arrived at FetchedAt
//	Failed   the last fetch gave up; Err says why
//
// # Ownership
//
// A Store is not safe for concurrent use. It is owned by the render loop
// goroutine; fetch workers never touch it and hand their results back over
// the scheduler's event channel instead.
//
// # Put Semantics
//
// Put is idempotent and tolerant of duplicate or reordered completions:
//
//	Ready   replaces anything except a Ready with a newer FetchedAt
//	Failed  replaces Pending or Failed, never Ready
//	Pending replaces Failed, never Ready (a background refresh keeps the
//	        stale payload visible)
//
// # Eviction
//
// Settled (Ready and Failed) entries sit in a least-recently-used list from
// hashicorp/golang-lru. Get touches recency, Peek does not. Pending entries
// live in a separate map: they count toward capacity but are never evicted,
// because an outstanding fetch has to be cancelled before its key can go.
//
// EvictIfOverCapacity drops the least recently used settled entries until the
// total fits and reports each one to the hook registered with OnEvict. The
// navigation machine uses that hook to drop a post's comment tree when the
// root comment entry of the post goes away.
package store
