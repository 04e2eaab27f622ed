package nav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/five82/snoo/internal/comments"
	"github.com/five82/snoo/internal/fetch"
	"github.com/five82/snoo/internal/reddit"
	"github.com/five82/snoo/internal/store"
)

var (
	// ErrAtRoot reports a Back on the bottom view. The stack is unchanged.
	ErrAtRoot = errors.New("already at the top level")
	// ErrNoMorePages means the listing is exhausted.
	ErrNoMorePages = errors.New("nothing more to load")
	// ErrNotReady means the content LoadMore would continue from is still loading.
	ErrNotReady = errors.New("still loading")
	// ErrNothingSelected means the action has no target on the selected row.
	ErrNothingSelected = errors.New("nothing to act on")
	// ErrEmptyName rejects an empty subreddit name or post id.
	ErrEmptyName = errors.New("name required")
)

// maxChainPages bounds how far a listing is followed when rebuilding its pages.
const maxChainPages = 200

// Scheduler is the part of fetch.Scheduler the machine drives.
type Scheduler interface {
	Request(key store.Key, prio fetch.Priority) fetch.Handle
	Refresh(key store.Key, prio fetch.Priority) fetch.Handle
	CancelAllExcept(keep []store.Key)
	Status(key store.Key) (fetch.Status, bool)
	Handle(ev fetch.Event) (fetch.Completion, bool)
}

var _ Scheduler = (*fetch.Scheduler)(nil)

// Options configure a Machine.
type Options struct {
	Store      *store.Store
	Scheduler  Scheduler
	Trees      *comments.Builder
	Subreddits []string
	Sort       reddit.Sort
}

// Machine owns the navigation stack. It must only be used from the goroutine
// that owns the store.
type Machine struct {
	stack []frame
	store *store.Store
	sched Scheduler
	trees *comments.Builder
	subs  []string
	sort  reddit.Sort
}

// New builds a Machine showing the subreddit directory and requests its
// content.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil || opts.Scheduler == nil || opts.Trees == nil {
		return nil, errors.New("navigation requires a store, a scheduler and comment trees")
	}
	m := &Machine{
		store: opts.Store,
		sched: opts.Scheduler,
		trees: opts.Trees,
		sort:  opts.Sort,
	}
	if m.sort == "" {
		m.sort = reddit.SortHot
	}
	seen := make(map[string]bool)
	for _, raw := range opts.Subreddits {
		name := normalizeSubreddit(raw)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		m.subs = append(m.subs, name)
	}
	m.store.OnEvict(m.evicted)
	m.push(SubredditList{})
	m.sync()
	return m, nil
}

// Current returns the active view.
func (m *Machine) Current() View {
	return m.stack[len(m.stack)-1].view
}

// Depth returns the number of views on the stack.
func (m *Machine) Depth() int {
	return len(m.stack)
}

// Stack returns the views from bottom to top.
func (m *Machine) Stack() []View {
	views := make([]View, len(m.stack))
	for i, f := range m.stack {
		views[i] = f.view
	}
	return views
}

// Sort is the order new subreddit views open with.
func (m *Machine) Sort() reddit.Sort {
	return m.sort
}

func (m *Machine) push(v View) {
	m.stack = append(m.stack, frame{view: v})
}

func (m *Machine) pop() frame {
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top
}

// replaceTop swaps the active view, keeping its selection.
func (m *Machine) replaceTop(v View) {
	old := m.pop()
	m.push(v)
	m.stack[len(m.stack)-1].selected = old.selected
}

func (m *Machine) top() *frame {
	return &m.stack[len(m.stack)-1]
}

// OpenSubreddit pushes the post list of name.
func (m *Machine) OpenSubreddit(name string) error {
	name = normalizeSubreddit(name)
	if name == "" {
		return fmt.Errorf("open subreddit: %w", ErrEmptyName)
	}
	m.push(PostList{Subreddit: name, Sort: m.sort})
	m.sync()
	return nil
}

// OpenPost pushes the comment view of postID.
func (m *Machine) OpenPost(postID string) error {
	postID = strings.TrimPrefix(strings.TrimSpace(postID), "t3_")
	if postID == "" {
		return fmt.Errorf("open post: %w", ErrEmptyName)
	}
	m.push(PostDetail{PostID: postID})
	m.sync()
	return nil
}

// Back pops the active view. On the bottom view it returns ErrAtRoot.
func (m *Machine) Back() error {
	if len(m.stack) <= 1 {
		return ErrAtRoot
	}
	m.pop()
	m.sync()
	return nil
}

// LoadMore extends a listing by one page, or expands the selected (or else
// the post-level) "more comments" marker of a post.
func (m *Machine) LoadMore() error {
	switch v := m.Current().(type) {
	case SubredditList:
		next, page, err := m.nextPage(m.subredditKeys(v))
		if err != nil {
			return err
		}
		m.replaceTop(SubredditList{Cursor: next, Page: page})
	case PostList:
		next, page, err := m.nextPage(m.listingKeys(v))
		if err != nil {
			return err
		}
		m.replaceTop(PostList{Subreddit: v.Subreddit, Sort: v.Sort, Cursor: next, Page: page})
	case PostDetail:
		nodeID := ""
		rows := m.rows(v)
		if sel := m.selected(len(rows)); sel >= 0 && rows[sel].Kind == RowMoreComments {
			nodeID = rows[sel].ID
		}
		return m.expand(v, nodeID)
	}
	m.sync()
	return nil
}

func (m *Machine) nextPage(keys []store.Key) (string, int, error) {
	last := keys[len(keys)-1]
	e, ok := m.store.Peek(last)
	if !ok || e.State == store.StatePending {
		return "", 0, ErrNotReady
	}
	if e.State == store.StateFailed || e.Page.Next == "" {
		return "", 0, ErrNoMorePages
	}
	if len(keys) >= maxChainPages {
		return "", 0, ErrNoMorePages
	}
	return e.Page.Next, len(keys), nil
}

func (m *Machine) expand(v PostDetail, nodeID string) error {
	marker, err := m.trees.Marker(v.PostID, nodeID)
	if err != nil {
		if errors.Is(err, comments.ErrNothingToExpand) {
			return ErrNoMorePages
		}
		if errors.Is(err, comments.ErrUnknownPost) {
			return ErrNotReady
		}
		return err
	}
	if v.hasToken(marker.Token) {
		return nil
	}
	// A fragment still cached from an earlier visit is re-ingested by sync.
	if e, ok := m.store.Get(store.CommentsKey(v.PostID, marker.Token)); !ok || e.State != store.StateReady {
		if _, err := m.trees.Expand(v.PostID, nodeID); err != nil {
			return err
		}
	}
	m.replaceTop(v.withToken(marker.Token))
	m.sync()
	return nil
}

// Select acts on the selected row: open a subreddit or post, load the next
// page, expand replies, or fold a comment.
func (m *Machine) Select() error {
	rows := m.rows(m.Current())
	sel := m.selected(len(rows))
	if sel < 0 {
		return ErrNothingSelected
	}
	row := rows[sel]
	switch row.Kind {
	case RowSubreddit:
		return m.OpenSubreddit(row.ID)
	case RowPost:
		return m.OpenPost(row.ID)
	case RowLoadMore:
		return m.LoadMore()
	case RowMoreComments:
		if v, ok := m.Current().(PostDetail); ok {
			return m.expand(v, row.ID)
		}
	case RowComment:
		return m.ToggleCollapse()
	}
	return ErrNothingSelected
}

// ToggleCollapse folds or unfolds the selected comment.
func (m *Machine) ToggleCollapse() error {
	v, ok := m.Current().(PostDetail)
	if !ok {
		return ErrNothingSelected
	}
	rows := m.rows(v)
	sel := m.selected(len(rows))
	if sel < 0 || rows[sel].Kind != RowComment {
		return ErrNothingSelected
	}
	return m.trees.ToggleCollapse(v.PostID, rows[sel].ID)
}

// Refresh re-fetches everything the active view shows. Cached content stays
// on screen until the new copies arrive.
func (m *Machine) Refresh() {
	for _, key := range m.requiredKeys(m.Current()) {
		m.sched.Refresh(key, fetch.PriorityNormal)
	}
	m.sync()
}

// CycleSort advances the sort order. A post list on top is reopened in the
// new order; later subreddits open with it too.
func (m *Machine) CycleSort() reddit.Sort {
	if v, ok := m.Current().(PostList); ok {
		m.sort = v.Sort.Next()
		m.replaceTop(PostList{Subreddit: v.Subreddit, Sort: m.sort})
		m.top().selected = 0
		m.sync()
		return m.sort
	}
	m.sort = m.sort.Next()
	return m.sort
}

// Move shifts the selection by delta rows, clamped to the view.
func (m *Machine) Move(delta int) {
	n := len(m.rows(m.Current()))
	f := m.top()
	f.selected = clamp(f.selected+delta, n)
}

// MoveTo selects row index, clamped to the view. Negative selects the last row.
func (m *Machine) MoveTo(index int) {
	n := len(m.rows(m.Current()))
	if index < 0 {
		index = n - 1
	}
	m.top().selected = clamp(index, n)
}

// MoveUp selects the previous row.
func (m *Machine) MoveUp() { m.Move(-1) }

// MoveDown selects the next row.
func (m *Machine) MoveDown() { m.Move(1) }

func (m *Machine) selected(n int) int {
	if n == 0 {
		return -1
	}
	return clamp(m.top().selected, n)
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Apply hands a scheduler event to the scheduler, folds finished comment
// fragments into their tree and reconciles the active view.
func (m *Machine) Apply(ev fetch.Event) (fetch.Completion, bool) {
	c, ok := m.sched.Handle(ev)
	if ok && c.Err == nil && c.Key().Kind == store.KindComments {
		m.ingest(c.Key())
	}
	m.sync()
	return c, ok
}

func (m *Machine) ingest(key store.Key) {
	e, ok := m.store.Peek(key)
	if !ok || e.State != store.StateReady {
		return
	}
	if _, built := m.trees.Tree(key.ID); built || key.IsCommentRoot() {
		m.trees.Ingest(key.ID, e.Fragment)
	}
}

func (m *Machine) evicted(key store.Key, _ store.Entry) {
	if key.IsCommentRoot() {
		m.trees.Drop(key.ID)
	}
}

// sync requests what the active view needs and cancels everything else.
func (m *Machine) sync() {
	keys := m.requiredKeys(m.Current())
	for _, key := range keys {
		// Get, not Peek: the active view's entries are the last to be evicted.
		if e, ok := m.store.Get(key); ok && e.State != store.StatePending {
			continue
		}
		m.sched.Request(key, fetch.PriorityHigh)
	}
	m.sched.CancelAllExcept(keys)
	m.materialize()
	m.store.EvictIfOverCapacity()
}

// materialize rebuilds the active post's tree from cached fragments.
func (m *Machine) materialize() {
	v, ok := m.Current().(PostDetail)
	if !ok {
		return
	}
	tree, built := m.trees.Tree(v.PostID)
	if !built {
		root, ok := m.store.Peek(store.CommentsKey(v.PostID, ""))
		if !ok || root.State != store.StateReady {
			return
		}
		m.trees.Ingest(v.PostID, root.Fragment)
		tree, _ = m.trees.Tree(v.PostID)
	}
	for _, token := range v.CursorStack {
		if tree.Loaded(token) {
			continue
		}
		if e, ok := m.store.Peek(store.CommentsKey(v.PostID, token)); ok && e.State == store.StateReady {
			m.trees.Ingest(v.PostID, e.Fragment)
		}
	}
}

func (m *Machine) requiredKeys(v View) []store.Key {
	switch v := v.(type) {
	case SubredditList:
		return m.subredditKeys(v)
	case PostList:
		return m.listingKeys(v)
	case PostDetail:
		keys := []store.Key{store.CommentsKey(v.PostID, "")}
		for _, token := range v.CursorStack {
			keys = append(keys, store.CommentsKey(v.PostID, token))
		}
		return keys
	}
	return nil
}

func (m *Machine) subredditKeys(v SubredditList) []store.Key {
	return m.chain(store.SubredditsKey, v.Cursor, v.Page)
}

func (m *Machine) listingKeys(v PostList) []store.Key {
	return m.chain(func(cursor string) store.Key {
		return store.ListingKey(v.Subreddit, v.Sort, cursor)
	}, v.Cursor, v.Page)
}

// chain follows Next cursors from the first page until it reaches cursor or
// page pages beyond the first. A refreshed first page may point elsewhere;
// the page count still bounds the walk.
func (m *Machine) chain(key func(cursor string) store.Key, cursor string, page int) []store.Key {
	keys := []store.Key{key("")}
	current := ""
	for len(keys) <= page && current != cursor && len(keys) < maxChainPages {
		e, ok := m.store.Peek(key(current))
		if !ok || e.State != store.StateReady || e.Page.Next == "" {
			break
		}
		current = e.Page.Next
		keys = append(keys, key(current))
	}
	return keys
}

func normalizeSubreddit(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimPrefix(name, "r/")
	return strings.Trim(name, "/ ")
}
