package store

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/five82/snoo/internal/reddit"
)

// DefaultCapacity bounds the number of entries kept when no capacity is configured.
const DefaultCapacity = 256

// State is the lifecycle stage of an Entry.
type State int

const (
	StatePending State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is the cached value for a Key. Page is set for subreddit and listing
// keys, Fragment for comment keys. Slices inside are shared and must be
// treated as read-only.
type Entry struct {
	State     State
	Page      reddit.Page
	Fragment  reddit.CommentFragment
	FetchedAt time.Time
	Err       error
}

// PendingEntry marks a key as being fetched.
func PendingEntry() Entry {
	return Entry{State: StatePending}
}

// PageEntry is a Ready entry carrying a listing page.
func PageEntry(page reddit.Page, at time.Time) Entry {
	return Entry{State: StateReady, Page: page, FetchedAt: at}
}

// FragmentEntry is a Ready entry carrying a comment fragment.
func FragmentEntry(frag reddit.CommentFragment, at time.Time) Entry {
	return Entry{State: StateReady, Fragment: frag, FetchedAt: at}
}

// FailedEntry records a fetch that gave up.
func FailedEntry(err error, at time.Time) Entry {
	return Entry{State: StateFailed, Err: err, FetchedAt: at}
}

// EvictFunc observes evictions.
type EvictFunc func(key Key, entry Entry)

// Store is a capacity-bounded cache of Entries. It is not safe for concurrent use.
type Store struct {
	capacity int
	settled  *simplelru.LRU[Key, Entry]
	pending  map[Key]Entry
	onEvict  EvictFunc
}

// New builds a Store holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// No eviction callback: the list is never allowed to overflow on Add, so
	// every eviction goes through evictOldest and reaches the hook.
	settled, err := simplelru.NewLRU[Key, Entry](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Store{
		capacity: capacity,
		settled:  settled,
		pending:  make(map[Key]Entry),
	}, nil
}

// OnEvict registers the hook called for every evicted entry.
func (s *Store) OnEvict(fn EvictFunc) {
	s.onEvict = fn
}

// Get returns the entry for key and marks it recently used.
func (s *Store) Get(key Key) (Entry, bool) {
	if e, ok := s.pending[key]; ok {
		return e, true
	}
	return s.settled.Get(key)
}

// Peek returns the entry for key without touching recency.
func (s *Store) Peek(key Key) (Entry, bool) {
	if e, ok := s.pending[key]; ok {
		return e, true
	}
	return s.settled.Peek(key)
}

// Put stores entry under key following the replacement rules in the package
// documentation.
func (s *Store) Put(key Key, entry Entry) {
	current, hasSettled := s.settled.Peek(key)
	currentReady := hasSettled && current.State == StateReady

	switch entry.State {
	case StatePending:
		if currentReady {
			return
		}
		if hasSettled {
			s.settled.Remove(key)
		}
		s.pending[key] = entry
	case StateReady:
		delete(s.pending, key)
		if currentReady && entry.FetchedAt.Before(current.FetchedAt) {
			return
		}
		s.addSettled(key, entry)
	case StateFailed:
		delete(s.pending, key)
		if currentReady {
			return
		}
		s.addSettled(key, entry)
	}
}

// Invalidate removes key without calling the eviction hook.
func (s *Store) Invalidate(key Key) {
	delete(s.pending, key)
	s.settled.Remove(key)
}

// EvictIfOverCapacity evicts least recently used settled entries while the
// store holds more than its capacity. Pending entries are never evicted.
func (s *Store) EvictIfOverCapacity() []Key {
	var evicted []Key
	for s.Len() > s.capacity {
		key, ok := s.evictOldest()
		if !ok {
			break
		}
		evicted = append(evicted, key)
	}
	return evicted
}

// Len counts pending and settled entries.
func (s *Store) Len() int {
	return s.settled.Len() + len(s.pending)
}

// Capacity reports the configured bound.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) addSettled(key Key, entry Entry) {
	if !s.settled.Contains(key) && s.settled.Len() >= s.capacity {
		s.evictOldest()
	}
	s.settled.Add(key, entry)
}

func (s *Store) evictOldest() (Key, bool) {
	key, entry, ok := s.settled.RemoveOldest()
	if !ok {
		return Key{}, false
	}
	if s.onEvict != nil {
		s.onEvict(key, entry)
	}
	return key, true
}
