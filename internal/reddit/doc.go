// Package reddit is the HTTP client for Reddit's public JSON API.
//
// # Overview
//
// The client exposes the three reads the browser needs: the popular subreddit
// directory, a subreddit post listing for one sort order, and comment trees.
// Comment trees arrive in fragments. The first fragment of a post comes from
// /comments/{id}.json, and every further fragment answers an opaque
// continuation token that was carried by a "more" marker in an earlier one.
//
// Cursors and continuation tokens are opaque strings. Callers hand them back
// unchanged and never interpret them.
//
// # Errors
//
// Every failure that comes out of the client is an *APIError (possibly
// wrapped) carrying an ErrorKind. Classify reduces any error to a kind so the
// fetch scheduler can decide between retrying and giving up.
package reddit
