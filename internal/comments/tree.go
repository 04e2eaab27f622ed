package comments

import (
	"time"

	"github.com/five82/snoo/internal/reddit"
)

// More is an unexpanded run of replies.
type More struct {
	Count int
	Token string
}

// Node is one comment. ParentID is empty for top-level comments.
type Node struct {
	ID        string
	ParentID  string
	Author    string
	Body      string
	Score     int
	CreatedAt time.Time
	Depth     int
	Children  []string
	More      *More
	Collapsed bool
}

// Tree is the merged comment tree of one post.
type Tree struct {
	PostID string
	Post   *reddit.Post
	Roots  []string
	Nodes  map[string]*Node
	More   *More

	loaded map[string]bool
}

func newTree(postID string) *Tree {
	return &Tree{
		PostID: postID,
		Nodes:  make(map[string]*Node),
		loaded: make(map[string]bool),
	}
}

// Loaded reports whether the fragment for token (empty for the root) has been
// ingested.
func (t *Tree) Loaded(token string) bool {
	return t.loaded[token]
}

// Node looks up a comment by id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.Nodes[id]
	return n, ok
}

// Descendants counts the comments below id.
func (t *Tree) Descendants(id string) int {
	n, ok := t.Nodes[id]
	if !ok {
		return 0
	}
	total := 0
	for _, child := range n.Children {
		total += 1 + t.Descendants(child)
	}
	return total
}

// LineKind tells comment rows from "load more" rows.
type LineKind int

const (
	LineComment LineKind = iota
	LineMore
)

// Line is one visible row of a flattened tree. For LineMore, NodeID is the
// node owning the marker (empty for the post-level marker).
type Line struct {
	Kind   LineKind
	NodeID string
	Depth  int
	More   More
	Hidden int
}

func (t *Tree) flatten() []Line {
	var lines []Line
	var walk func(id string)
	walk = func(id string) {
		n, ok := t.Nodes[id]
		if !ok {
			return
		}
		line := Line{Kind: LineComment, NodeID: id, Depth: n.Depth}
		if n.Collapsed {
			line.Hidden = t.Descendants(id)
			lines = append(lines, line)
			return
		}
		lines = append(lines, line)
		for _, child := range n.Children {
			walk(child)
		}
		if n.More != nil {
			lines = append(lines, Line{Kind: LineMore, NodeID: id, Depth: n.Depth + 1, More: *n.More})
		}
	}
	for _, id := range t.Roots {
		walk(id)
	}
	if t.More != nil {
		lines = append(lines, Line{Kind: LineMore, More: *t.More})
	}
	return lines
}
