package nav

import (
	"fmt"
	"strings"

	"github.com/five82/snoo/internal/comments"
	"github.com/five82/snoo/internal/fetch"
	"github.com/five82/snoo/internal/reddit"
	"github.com/five82/snoo/internal/store"
)

// RowKind identifies what a row shows.
type RowKind int

const (
	RowSubreddit RowKind = iota
	RowPost
	RowLoadMore
	RowPostHeader
	RowComment
	RowMoreComments
	RowPlaceholder
)

// UnavailableText is shown in place of content that was removed or is private.
const UnavailableText = "[removed or unavailable]"

// Row is one line item of a view.
type Row struct {
	Kind      RowKind
	ID        string
	Title     string
	Body      string
	Meta      string
	Depth     int
	Count     int
	Collapsed bool
	Hidden    int
	Loading   bool
}

// StatusKind summarises the fetch state behind a view.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusLoading
	StatusRefreshing
	StatusRetrying
	StatusError
)

// Status is the status line of a view.
type Status struct {
	Kind    StatusKind
	Message string
}

// ViewModel is everything needed to draw the active view.
type ViewModel struct {
	Title      string
	Breadcrumb []string
	Rows       []Row
	Selected   int
	Status     Status
	Sort       reddit.Sort
	CanGoBack  bool
}

// ViewModel projects the active view. It has no side effects.
func (m *Machine) ViewModel() ViewModel {
	v := m.Current()
	rows := m.rows(v)
	vm := ViewModel{
		Title:     m.title(v),
		Rows:      rows,
		Selected:  m.selected(len(rows)),
		Status:    m.status(m.requiredKeys(v)),
		Sort:      m.sort,
		CanGoBack: len(m.stack) > 1,
	}
	if vm.Selected < 0 {
		vm.Selected = 0
	}
	for _, f := range m.stack {
		vm.Breadcrumb = append(vm.Breadcrumb, m.title(f.view))
	}
	return vm
}

func (m *Machine) title(v View) string {
	switch v := v.(type) {
	case SubredditList:
		return "Subreddits"
	case PostList:
		return fmt.Sprintf("r/%s · %s", v.Subreddit, v.Sort)
	case PostDetail:
		if tree, ok := m.trees.Tree(v.PostID); ok && tree.Post != nil && tree.Post.Title != "" {
			return tree.Post.Title
		}
		return "Post " + v.PostID
	}
	return ""
}

func (m *Machine) rows(v View) []Row {
	switch v := v.(type) {
	case SubredditList:
		return m.subredditRows(v)
	case PostList:
		return m.postRows(v)
	case PostDetail:
		return m.commentRows(v)
	}
	return nil
}

func (m *Machine) subredditRows(v SubredditList) []Row {
	seen := make(map[string]bool)
	var rows []Row
	for _, name := range m.subs {
		seen[strings.ToLower(name)] = true
		rows = append(rows, Row{Kind: RowSubreddit, ID: name, Title: "r/" + name, Meta: "subscribed"})
	}
	pageRows, tail := m.pageRows(m.subredditKeys(v), func(p reddit.Page) []Row {
		var out []Row
		for _, sub := range p.Subreddits {
			if sub.Name == "" || seen[strings.ToLower(sub.Name)] {
				continue
			}
			seen[strings.ToLower(sub.Name)] = true
			out = append(out, Row{
				Kind:  RowSubreddit,
				ID:    sub.Name,
				Title: "r/" + sub.Name,
				Body:  sub.Description,
				Meta:  fmt.Sprintf("%s subscribers", compactCount(sub.Subscribers)),
			})
		}
		return out
	})
	rows = append(rows, pageRows...)
	if tail != nil {
		tail.Title = "load more subreddits"
		rows = append(rows, *tail)
	}
	return rows
}

func (m *Machine) postRows(v PostList) []Row {
	seen := make(map[string]bool)
	rows, tail := m.pageRows(m.listingKeys(v), func(p reddit.Page) []Row {
		var out []Row
		for _, post := range p.Posts {
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			out = append(out, postRow(post))
		}
		return out
	})
	if tail != nil {
		tail.Title = "load more posts"
		rows = append(rows, *tail)
	}
	return rows
}

// pageRows renders the Ready pages of a chain in order. It stops at the first
// page that is not Ready; a failed page becomes a placeholder. The returned
// tail is a load-more row when the last page has a successor.
func (m *Machine) pageRows(keys []store.Key, render func(reddit.Page) []Row) ([]Row, *Row) {
	var rows []Row
	for i, key := range keys {
		e, ok := m.store.Peek(key)
		if !ok || e.State == store.StatePending {
			return rows, nil
		}
		if e.State == store.StateFailed {
			return append(rows, placeholderRow(e.Err)), nil
		}
		rows = append(rows, render(e.Page)...)
		if i == len(keys)-1 && e.Page.Next != "" {
			return rows, &Row{Kind: RowLoadMore}
		}
	}
	return rows, nil
}

func (m *Machine) commentRows(v PostDetail) []Row {
	root, ok := m.store.Peek(store.CommentsKey(v.PostID, ""))
	if ok && root.State == store.StateFailed {
		if _, built := m.trees.Tree(v.PostID); !built {
			return []Row{placeholderRow(root.Err)}
		}
	}
	tree, ok := m.trees.Tree(v.PostID)
	if !ok {
		return nil
	}
	var rows []Row
	if tree.Post != nil {
		rows = append(rows, headerRow(*tree.Post))
	}
	for _, line := range m.trees.Flatten(v.PostID) {
		switch line.Kind {
		case comments.LineComment:
			n, ok := tree.Node(line.NodeID)
			if !ok {
				continue
			}
			rows = append(rows, Row{
				Kind:      RowComment,
				ID:        n.ID,
				Title:     n.Author,
				Body:      n.Body,
				Meta:      fmt.Sprintf("%d points", n.Score),
				Depth:     n.Depth,
				Collapsed: n.Collapsed,
				Hidden:    line.Hidden,
			})
		case comments.LineMore:
			loading := false
			if e, ok := m.store.Peek(store.CommentsKey(v.PostID, line.More.Token)); ok && e.State == store.StatePending {
				loading = true
			}
			title := fmt.Sprintf("load %d more %s", line.More.Count, plural(line.More.Count, "reply", "replies"))
			if reddit.IsThreadToken(line.More.Token) {
				title = "continue this thread"
			}
			rows = append(rows, Row{
				Kind:    RowMoreComments,
				ID:      line.NodeID,
				Title:   title,
				Depth:   line.Depth,
				Count:   line.More.Count,
				Loading: loading,
			})
		}
	}
	return rows
}

func postRow(p reddit.Post) Row {
	meta := fmt.Sprintf("%d points · %d comments · u/%s", p.Score, p.NumComments, p.Author)
	if p.Stickied {
		meta = "pinned · " + meta
	}
	if p.NSFW {
		meta = "nsfw · " + meta
	}
	return Row{Kind: RowPost, ID: p.ID, Title: p.Title, Meta: meta}
}

func headerRow(p reddit.Post) Row {
	body := p.Body
	if !p.IsSelf && p.URL != "" {
		if body != "" {
			body = p.URL + "\n\n" + body
		} else {
			body = p.URL
		}
	}
	return Row{
		Kind:  RowPostHeader,
		ID:    p.ID,
		Title: p.Title,
		Body:  body,
		Meta:  fmt.Sprintf("r/%s · u/%s · %d points · %d comments", p.Subreddit, p.Author, p.Score, p.NumComments),
	}
}

func placeholderRow(err error) Row {
	if reddit.Classify(err) == reddit.KindNotFound {
		return Row{Kind: RowPlaceholder, Title: UnavailableText}
	}
	return Row{Kind: RowPlaceholder, Title: "[failed to load]", Body: DescribeError(err)}
}

func (m *Machine) status(keys []store.Key) Status {
	var loading, refreshing bool
	var retrying *fetch.Status
	var failed error
	for _, key := range keys {
		entry, cached := m.store.Peek(key)
		if st, ok := m.sched.Status(key); ok {
			switch {
			case st.Phase == fetch.PhaseRetrying || st.LastErr != nil:
				if retrying == nil {
					retrying = &st
				}
			case st.Refresh && cached && entry.State == store.StateReady:
				refreshing = true
			default:
				loading = true
			}
			continue
		}
		if !cached {
			loading = true
			continue
		}
		if entry.State == store.StateFailed && failed == nil {
			failed = entry.Err
		}
	}
	switch {
	case retrying != nil:
		return Status{Kind: StatusRetrying, Message: fmt.Sprintf("Retrying… (attempt %d/%d)", retrying.Attempt+1, retrying.MaxAttempts)}
	case failed != nil:
		return Status{Kind: StatusError, Message: DescribeError(failed)}
	case loading:
		return Status{Kind: StatusLoading, Message: "Loading…"}
	case refreshing:
		return Status{Kind: StatusRefreshing, Message: "Refreshing…"}
	}
	return Status{Kind: StatusIdle}
}

// DescribeError renders a fetch error for the status line.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	switch reddit.Classify(err) {
	case reddit.KindNotFound:
		return "removed or unavailable"
	case reddit.KindRateLimited:
		return "rate limited by reddit, try again shortly"
	case reddit.KindTransient:
		return "network error: " + err.Error()
	default:
		return "error: " + err.Error()
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func compactCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
