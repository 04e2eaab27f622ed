package store

import (
	"fmt"

	"github.com/five82/snoo/internal/reddit"
)

// Kind selects the endpoint a Key is fetched from.
type Kind int

const (
	KindSubreddits Kind = iota
	KindListing
	KindComments
)

func (k Kind) String() string {
	switch k {
	case KindSubreddits:
		return "subreddits"
	case KindListing:
		return "listing"
	case KindComments:
		return "comments"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies one fetchable unit of content. For listings ID is the
// subreddit, for comments it is the post id and Cursor holds the continuation
// token (empty for the root fragment).
type Key struct {
	Kind   Kind
	ID     string
	Sort   reddit.Sort
	Cursor string
}

// SubredditsKey names a page of the popular subreddit directory.
func SubredditsKey(cursor string) Key {
	return Key{Kind: KindSubreddits, Cursor: cursor}
}

// ListingKey names a page of a subreddit listing.
func ListingKey(subreddit string, sort reddit.Sort, cursor string) Key {
	return Key{Kind: KindListing, ID: subreddit, Sort: sort, Cursor: cursor}
}

// CommentsKey names a comment fragment of a post.
func CommentsKey(postID, token string) Key {
	return Key{Kind: KindComments, ID: postID, Cursor: token}
}

// IsCommentRoot reports whether k is the first comment fragment of a post.
func (k Key) IsCommentRoot() bool {
	return k.Kind == KindComments && k.Cursor == ""
}

func (k Key) String() string {
	switch k.Kind {
	case KindSubreddits:
		return "subreddits/" + k.Cursor
	case KindListing:
		return fmt.Sprintf("r/%s/%s/%s", k.ID, k.Sort, k.Cursor)
	case KindComments:
		if k.Cursor == "" {
			return "comments/" + k.ID
		}
		return fmt.Sprintf("comments/%s/more(%s)", k.ID, k.Cursor)
	default:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.ID, k.Cursor)
	}
}
