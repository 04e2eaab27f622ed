package reddit

import (
	"strings"
	"time"
)

// Sort is a listing order.
type Sort string

const (
	SortHot    Sort = "hot"
	SortNew    Sort = "new"
	SortTop    Sort = "top"
	SortRising Sort = "rising"
	SortBest   Sort = "best"
)

var sortCycle = []Sort{SortHot, SortNew, SortTop, SortRising, SortBest}

// ParseSort accepts a sort name in any case. The empty string maps to hot.
func ParseSort(raw string) (Sort, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return SortHot, true
	}
	for _, s := range sortCycle {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Next returns the sort that follows s in the cycle hot → new → top → rising → best.
func (s Sort) Next() Sort {
	for i, candidate := range sortCycle {
		if candidate == s {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return SortHot
}

func (s Sort) String() string {
	if s == "" {
		return string(SortHot)
	}
	return string(s)
}

// Subreddit is one entry of the subreddit directory.
type Subreddit struct {
	Name        string
	Title       string
	Description string
	Subscribers int
	NSFW        bool
}

// Post is a link or self post in a listing.
type Post struct {
	ID          string
	Subreddit   string
	Author      string
	Title       string
	Body        string
	URL         string
	Permalink   string
	Score       int
	NumComments int
	CreatedAt   time.Time
	IsSelf      bool
	Stickied    bool
	NSFW        bool
}

// Page is one page of a listing. Exactly one of Posts or Subreddits is
// populated depending on the endpoint. Next is the cursor of the following
// page, empty when the listing is exhausted.
type Page struct {
	Posts      []Post
	Subreddits []Subreddit
	Next       string
}

// Comment is a comment with its already-delivered replies.
type Comment struct {
	ID        string
	ParentID  string // bare comment id, empty for top-level comments
	Author    string
	Body      string
	Score     int
	CreatedAt time.Time
	Replies   []Comment
	More      *More
}

// More marks replies that were not delivered. Token fetches them.
type More struct {
	ParentID string // empty for post-level markers
	Count    int
	Token    string
}

// CommentFragment is the result of one comment fetch. Token is the
// continuation token it answers, empty for the root fragment. Post is only set
// on the root fragment. More holds markers whose parent is not part of
// Comments: the post-level marker and leftovers of a partial expansion.
type CommentFragment struct {
	PostID   string
	Token    string
	Post     *Post
	Comments []Comment
	More     []More
}
