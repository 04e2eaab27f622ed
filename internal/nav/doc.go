// Package nav is the navigation state machine of the browser.
//
// A Machine holds a stack of views: the subreddit directory at the bottom,
// then a subreddit's posts, then one post's comments. Every transition and
// every applied fetch event ends in the same reconciliation step. The machine
// works out which store keys the top view needs, requests the ones that are
// missing, and cancels every outstanding fetch the top view no longer needs.
// Views hold identifiers only; content is always read from the store and the
// comment trees.
//
// ViewModel projects the top of the stack into rows and a status line. It
// never mutates anything and never touches cache recency.
package nav
