package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/snoo/internal/reddit"
)

func newStore(t *testing.T, capacity int) *Store {
	t.Helper()
	s, err := New(capacity)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func page(ids ...string) reddit.Page {
	var p reddit.Page
	for _, id := range ids {
		p.Posts = append(p.Posts, reddit.Post{ID: id})
	}
	return p
}

func TestStore_FailedNeverOverwritesReady(t *testing.T) {
	s := newStore(t, 4)
	key := ListingKey("rust", reddit.SortHot, "")
	now := time.Now()

	s.Put(key, PageEntry(page("a"), now))
	s.Put(key, FailedEntry(errors.New("boom"), now.Add(time.Second)))

	got, ok := s.Get(key)
	if !ok || got.State != StateReady {
		t.Fatalf("entry = %+v, want ready", got)
	}
	if len(got.Page.Posts) != 1 || got.Page.Posts[0].ID != "a" {
		t.Fatalf("payload = %+v, want original page", got.Page)
	}
}

func TestStore_NewestReadyWins(t *testing.T) {
	s := newStore(t, 4)
	key := ListingKey("rust", reddit.SortHot, "")
	now := time.Now()

	s.Put(key, PageEntry(page("new"), now))
	s.Put(key, PageEntry(page("old"), now.Add(-time.Minute)))
	if got, _ := s.Peek(key); got.Page.Posts[0].ID != "new" {
		t.Fatalf("older payload replaced newer: %+v", got.Page)
	}

	s.Put(key, PageEntry(page("newer"), now.Add(time.Minute)))
	if got, _ := s.Peek(key); got.Page.Posts[0].ID != "newer" {
		t.Fatalf("newer payload not stored: %+v", got.Page)
	}
}

func TestStore_PendingKeepsReadyAndReplacesFailed(t *testing.T) {
	s := newStore(t, 4)
	ready := ListingKey("rust", reddit.SortHot, "")
	failed := ListingKey("go", reddit.SortHot, "")
	now := time.Now()

	s.Put(ready, PageEntry(page("a"), now))
	s.Put(ready, PendingEntry())
	if got, _ := s.Peek(ready); got.State != StateReady {
		t.Fatalf("pending replaced ready: %+v", got)
	}

	s.Put(failed, FailedEntry(errors.New("boom"), now))
	s.Put(failed, PendingEntry())
	if got, _ := s.Peek(failed); got.State != StatePending {
		t.Fatalf("state = %v, want pending", got.State)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestStore_EvictsLeastRecentlyUsedAndCallsHook(t *testing.T) {
	s := newStore(t, 3)
	var evicted []Key
	s.OnEvict(func(k Key, _ Entry) { evicted = append(evicted, k) })

	now := time.Now()
	a := CommentsKey("a", "")
	b := CommentsKey("b", "")
	c := CommentsKey("c", "")
	d := CommentsKey("d", "")
	s.Put(a, FragmentEntry(reddit.CommentFragment{PostID: "a"}, now))
	s.Put(b, FragmentEntry(reddit.CommentFragment{PostID: "b"}, now))
	s.Put(c, FragmentEntry(reddit.CommentFragment{PostID: "c"}, now))

	// Touch a so b becomes the oldest.
	if _, ok := s.Get(a); !ok {
		t.Fatalf("Get(a) missing")
	}
	s.Put(d, FragmentEntry(reddit.CommentFragment{PostID: "d"}, now))

	if !reflect.DeepEqual(evicted, []Key{b}) {
		t.Fatalf("evicted = %v, want [%v]", evicted, b)
	}
	if _, ok := s.Peek(b); ok {
		t.Fatalf("b still cached after eviction")
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}

func TestStore_PendingCountsTowardCapacityButIsNeverEvicted(t *testing.T) {
	s := newStore(t, 2)
	var evicted []Key
	s.OnEvict(func(k Key, _ Entry) { evicted = append(evicted, k) })

	now := time.Now()
	settled := SubredditsKey("")
	s.Put(settled, PageEntry(reddit.Page{}, now))
	p1 := ListingKey("a", reddit.SortHot, "")
	p2 := ListingKey("b", reddit.SortHot, "")
	s.Put(p1, PendingEntry())
	s.Put(p2, PendingEntry())

	got := s.EvictIfOverCapacity()
	if !reflect.DeepEqual(got, []Key{settled}) || !reflect.DeepEqual(evicted, got) {
		t.Fatalf("evicted = %v (hook %v), want [%v]", got, evicted, settled)
	}
	if again := s.EvictIfOverCapacity(); len(again) != 0 {
		t.Fatalf("second pass evicted %v, want nothing", again)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want the two pending entries", s.Len())
	}
}

func TestStore_InvalidateSkipsHook(t *testing.T) {
	s := newStore(t, 2)
	called := false
	s.OnEvict(func(Key, Entry) { called = true })

	key := CommentsKey("p", "")
	s.Put(key, FragmentEntry(reddit.CommentFragment{}, time.Now()))
	s.Invalidate(key)
	if _, ok := s.Peek(key); ok {
		t.Fatalf("key still present after Invalidate")
	}
	if called {
		t.Fatalf("Invalidate called the eviction hook")
	}
}

func TestKeyHelpers(t *testing.T) {
	if !CommentsKey("p", "").IsCommentRoot() {
		t.Fatalf("root comments key not recognised")
	}
	if CommentsKey("p", "x:1").IsCommentRoot() || ListingKey("p", reddit.SortHot, "").IsCommentRoot() {
		t.Fatalf("non-root key reported as root")
	}
	if got := ListingKey("rust", reddit.SortTop, "t3_x").String(); got != "r/rust/top/t3_x" {
		t.Fatalf("String = %q", got)
	}
	if DefaultCapacity != 256 {
		t.Fatalf("DefaultCapacity = %d, want 256", DefaultCapacity)
	}
}
