package nav

import (
	"github.com/five82/snoo/internal/reddit"
)

// View is one screen on the navigation stack. Implementations are values and
// are never modified after they are pushed.
type View interface {
	isView()
}

// SubredditList is the subreddit directory. Page is the index of the page
// Cursor refers to; Cursor is empty on the first page.
type SubredditList struct {
	Cursor string
	Page   int
}

// PostList is one subreddit's posts in one sort order, loaded up to Cursor.
type PostList struct {
	Subreddit string
	Sort      reddit.Sort
	Cursor    string
	Page      int
}

// PostDetail is a post with its comments. CursorStack lists the continuation
// tokens expanded while the view was open.
type PostDetail struct {
	PostID      string
	CursorStack []string
}

func (SubredditList) isView() {}
func (PostList) isView()      {}
func (PostDetail) isView()    {}

func (v PostDetail) withToken(token string) PostDetail {
	stack := make([]string, 0, len(v.CursorStack)+1)
	stack = append(stack, v.CursorStack...)
	stack = append(stack, token)
	return PostDetail{PostID: v.PostID, CursorStack: stack}
}

func (v PostDetail) hasToken(token string) bool {
	for _, t := range v.CursorStack {
		if t == token {
			return true
		}
	}
	return false
}

type frame struct {
	view     View
	selected int
}
