package comments

import (
	"errors"
	"fmt"

	"github.com/five82/snoo/internal/fetch"
	"github.com/five82/snoo/internal/reddit"
	"github.com/five82/snoo/internal/store"
)

var (
	ErrUnknownPost     = errors.New("no comment tree for post")
	ErrUnknownNode     = errors.New("unknown comment")
	ErrNothingToExpand = errors.New("nothing to expand")
)

// Requester issues fetches for continuation tokens.
type Requester interface {
	Request(key store.Key, prio fetch.Priority) fetch.Handle
}

// Builder owns the comment trees of every post that has been opened.
type Builder struct {
	trees     map[string]*Tree
	requester Requester
}

// NewBuilder returns a Builder that expands markers through r.
func NewBuilder(r Requester) *Builder {
	return &Builder{trees: make(map[string]*Tree), requester: r}
}

// Tree returns the tree of postID. Callers must not modify it.
func (b *Builder) Tree(postID string) (*Tree, bool) {
	t, ok := b.trees[postID]
	return t, ok
}

// Drop forgets the tree of postID.
func (b *Builder) Drop(postID string) {
	delete(b.trees, postID)
}

// Ingest merges frag into the tree of postID and returns the ids of the
// comments it created or updated. A continuation fragment for a post whose
// root has not been ingested is ignored; nothing could be attached to it.
func (b *Builder) Ingest(postID string, frag reddit.CommentFragment) []string {
	t, ok := b.trees[postID]
	if !ok {
		if frag.Token != "" {
			return nil
		}
		t = newTree(postID)
		b.trees[postID] = t
	}
	if frag.Post != nil {
		post := *frag.Post
		t.Post = &post
	}
	if frag.Token != "" {
		clearMarker(t, frag.Token)
	}
	t.loaded[frag.Token] = true

	var updated []string
	for _, c := range frag.Comments {
		updated = ingest(t, c, c.ParentID, updated)
	}
	postMarker := false
	for _, m := range frag.More {
		installMarker(t, m.ParentID, m)
		postMarker = postMarker || m.ParentID == ""
	}
	// A root fragment without a post-level marker means every top-level
	// comment has been delivered.
	if frag.Token == "" && !postMarker {
		t.More = nil
	}
	return updated
}

func ingest(t *Tree, c reddit.Comment, parentID string, updated []string) []string {
	if c.ID == "" || c.ID == parentID {
		return updated
	}
	var parent *Node
	if parentID != "" {
		p, ok := t.Nodes[parentID]
		if !ok {
			return updated
		}
		parent = p
	}

	n, exists := t.Nodes[c.ID]
	if !exists {
		n = &Node{ID: c.ID, ParentID: parentID}
		if parent != nil {
			n.Depth = parent.Depth + 1
			parent.Children = append(parent.Children, c.ID)
		} else {
			t.Roots = append(t.Roots, c.ID)
		}
		t.Nodes[c.ID] = n
	}
	n.Author = c.Author
	n.Body = c.Body
	n.Score = c.Score
	n.CreatedAt = c.CreatedAt
	updated = append(updated, c.ID)

	for _, reply := range c.Replies {
		updated = ingest(t, reply, c.ID, updated)
	}
	// A comment delivered without a marker has no replies left to fetch; a
	// marker from an earlier fetch is stale. An answered marker is never
	// reinstalled, so a leftover from a partial expansion survives.
	if c.More != nil {
		installMarker(t, c.ID, *c.More)
	} else {
		n.More = nil
	}
	return updated
}

// installMarker places m on its parent unless its token was already answered.
func installMarker(t *Tree, parentID string, m reddit.More) {
	if m.Token == "" || t.loaded[m.Token] {
		return
	}
	marker := &More{Count: m.Count, Token: m.Token}
	if parentID == "" {
		t.More = marker
		return
	}
	if n, ok := t.Nodes[parentID]; ok {
		n.More = marker
	}
}

func clearMarker(t *Tree, token string) {
	if t.More != nil && t.More.Token == token {
		t.More = nil
	}
	for _, n := range t.Nodes {
		if n.More != nil && n.More.Token == token {
			n.More = nil
		}
	}
}

// Expand requests the replies behind the marker on nodeID, or behind the
// post-level marker when nodeID is empty.
func (b *Builder) Expand(postID, nodeID string) (fetch.Handle, error) {
	m, err := b.Marker(postID, nodeID)
	if err != nil {
		return fetch.Handle{}, err
	}
	return b.requester.Request(store.CommentsKey(postID, m.Token), fetch.PriorityHigh), nil
}

// Marker returns the unexpanded marker on nodeID (or the post when empty).
func (b *Builder) Marker(postID, nodeID string) (More, error) {
	t, ok := b.trees[postID]
	if !ok {
		return More{}, fmt.Errorf("%w: %s", ErrUnknownPost, postID)
	}
	var m *More
	if nodeID == "" {
		m = t.More
	} else {
		n, ok := t.Nodes[nodeID]
		if !ok {
			return More{}, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
		}
		m = n.More
	}
	if m == nil {
		return More{}, ErrNothingToExpand
	}
	return *m, nil
}

// ToggleCollapse flips the collapsed flag of nodeID.
func (b *Builder) ToggleCollapse(postID, nodeID string) error {
	t, ok := b.trees[postID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPost, postID)
	}
	n, ok := t.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	n.Collapsed = !n.Collapsed
	return nil
}

// Flatten lists the visible rows of postID's tree in display order. Children
// of collapsed nodes are hidden.
func (b *Builder) Flatten(postID string) []Line {
	t, ok := b.trees[postID]
	if !ok {
		return nil
	}
	return t.flatten()
}
