package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/five82/snoo/internal/reddit"
	"github.com/five82/snoo/internal/store"
)

// Client is the subset of the Reddit API the scheduler fetches from.
type Client interface {
	FetchSubreddits(ctx context.Context, cursor string) (reddit.Page, error)
	FetchListing(ctx context.Context, subreddit string, sort reddit.Sort, cursor string) (reddit.Page, error)
	FetchComments(ctx context.Context, postID, token string) (reddit.CommentFragment, error)
}

// Ensure reddit.Client implements Client at compile time.
var _ Client = (*reddit.Client)(nil)

// Priority orders queued fetches. Higher runs first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultMaxInFlight is the concurrency limit when none is configured.
const DefaultMaxInFlight = 4

const eventBuffer = 64

// Handle identifies one outstanding fetch.
type Handle struct {
	ID  uuid.UUID
	Key store.Key
}

// IsZero reports whether h refers to no fetch.
func (h Handle) IsZero() bool {
	return h.ID == uuid.Nil
}

// Phase is where an outstanding fetch currently is.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseRunning
	PhaseRetrying
)

// Status describes an outstanding fetch.
type Status struct {
	Phase       Phase
	Attempt     int
	MaxAttempts int
	NextAttempt time.Time
	LastErr     error
	Refresh     bool
}

// Completion is the final outcome of a fetch. Err is nil when a Ready entry
// was written.
type Completion struct {
	Handle Handle
	Err    error
}

// Key is the store key the completion settled.
func (c Completion) Key() store.Key {
	return c.Handle.Key
}

// Event carries an attempt result or a due retry back to the loop. Pass every
// Event received from Events to Handle.
type Event struct {
	p       *pending
	attempt int
	retry   bool
	res     result
}

type result struct {
	page reddit.Page
	frag reddit.CommentFragment
	err  error
	at   time.Time
}

type pending struct {
	handle      Handle
	priority    Priority
	seq         uint64
	refresh     bool
	phase       Phase
	attempt     int
	nextAttempt time.Time
	lastErr     error
	cancelled   bool
	cancel      context.CancelFunc
	stopTimer   func() bool
}

// Options configure a Scheduler.
type Options struct {
	Client      Client
	Store       *store.Store
	Policy      Policy
	MaxInFlight int
	Logger      *log.Logger
	// AfterFunc arms retry timers; nil uses time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) (stop func() bool)
	// Now stamps results; nil uses time.Now.
	Now func() time.Time
}

// Scheduler deduplicates, bounds and retries fetches. All methods except
// Events must be called from the goroutine that owns the store.
type Scheduler struct {
	client      Client
	store       *store.Store
	policy      Policy
	maxInFlight int
	logger      *log.Logger
	afterFunc   func(time.Duration, func()) func() bool
	now         func() time.Time

	ctx    context.Context
	stop   context.CancelFunc
	events chan Event

	pending map[store.Key]*pending
	queue   []*pending
	running int
	seq     uint64
}

// New builds a Scheduler whose attempts are bound to ctx.
func New(ctx context.Context, opts Options) (*Scheduler, error) {
	if opts.Client == nil {
		return nil, errors.New("fetch scheduler requires a client")
	}
	if opts.Store == nil {
		return nil, errors.New("fetch scheduler requires a store")
	}
	s := &Scheduler{
		client:      opts.Client,
		store:       opts.Store,
		policy:      opts.Policy.withDefaults(),
		maxInFlight: opts.MaxInFlight,
		logger:      opts.Logger,
		afterFunc:   opts.AfterFunc,
		now:         opts.Now,
		events:      make(chan Event, eventBuffer),
		pending:     make(map[store.Key]*pending),
	}
	if s.maxInFlight <= 0 {
		s.maxInFlight = DefaultMaxInFlight
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.ctx, s.stop = context.WithCancel(ctx)
	return s, nil
}

// Events delivers attempt results and due retries.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Request asks for key to be fetched. A key that is already outstanding keeps
// its handle and only has its priority raised.
func (s *Scheduler) Request(key store.Key, prio Priority) Handle {
	return s.request(key, prio, false)
}

// Refresh is Request for a key whose cached payload should be replaced. The
// cached payload stays visible until the new one arrives.
func (s *Scheduler) Refresh(key store.Key, prio Priority) Handle {
	return s.request(key, prio, true)
}

func (s *Scheduler) request(key store.Key, prio Priority, refresh bool) Handle {
	if p, ok := s.pending[key]; ok {
		if prio > p.priority {
			p.priority = prio
			if p.phase == PhaseQueued {
				s.sortQueue()
			}
		}
		return p.handle
	}
	s.seq++
	p := &pending{
		handle:   Handle{ID: uuid.New(), Key: key},
		priority: prio,
		seq:      s.seq,
		refresh:  refresh,
		phase:    PhaseQueued,
	}
	s.pending[key] = p
	s.store.Put(key, store.PendingEntry())
	s.enqueue(p)
	s.pump()
	return p.handle
}

// Cancel abandons the fetch behind h. Unknown or settled handles are ignored.
func (s *Scheduler) Cancel(h Handle) {
	p, ok := s.pending[h.Key]
	if !ok || p.handle.ID != h.ID {
		return
	}
	s.drop(p)
	s.pump()
}

// CancelAllExcept abandons every outstanding fetch whose key is not in keep.
func (s *Scheduler) CancelAllExcept(keep []store.Key) {
	wanted := make(map[store.Key]struct{}, len(keep))
	for _, k := range keep {
		wanted[k] = struct{}{}
	}
	dropped := false
	for key, p := range s.pending {
		if _, ok := wanted[key]; ok {
			continue
		}
		s.drop(p)
		dropped = true
	}
	if dropped {
		s.pump()
	}
}

// Status reports on the outstanding fetch for key.
func (s *Scheduler) Status(key store.Key) (Status, bool) {
	p, ok := s.pending[key]
	if !ok {
		return Status{}, false
	}
	return Status{
		Phase:       p.phase,
		Attempt:     p.attempt,
		MaxAttempts: s.policy.MaxAttempts,
		NextAttempt: p.nextAttempt,
		LastErr:     p.lastErr,
		Refresh:     p.refresh,
	}, true
}

// Outstanding counts fetches that have not settled yet.
func (s *Scheduler) Outstanding() int {
	return len(s.pending)
}

// Running counts attempts currently executing.
func (s *Scheduler) Running() int {
	return s.running
}

// Close cancels every attempt and stops timers. Events already queued are
// still delivered but Handle drops them.
func (s *Scheduler) Close() {
	for _, p := range s.pending {
		s.drop(p)
	}
	s.stop()
}

// Handle applies ev. It returns a Completion when a fetch settled, either
// with a Ready entry or with an error that will not be retried.
func (s *Scheduler) Handle(ev Event) (Completion, bool) {
	p := ev.p
	if p == nil {
		return Completion{}, false
	}
	if ev.retry {
		if s.live(p) && p.phase == PhaseRetrying {
			p.phase = PhaseQueued
			p.stopTimer = nil
			s.enqueue(p)
			s.pump()
		}
		return Completion{}, false
	}

	s.running--
	defer s.pump()

	if !s.live(p) || p.phase != PhaseRunning || ev.attempt != p.attempt {
		if reddit.IsCanceled(ev.res.err) {
			s.logger.Printf("fetch %s: attempt %d cancelled", p.handle.Key, ev.attempt)
		}
		return Completion{}, false
	}
	p.cancel = nil
	key := p.handle.Key

	if ev.res.err == nil {
		delete(s.pending, key)
		if key.Kind == store.KindComments {
			s.store.Put(key, store.FragmentEntry(ev.res.frag, ev.res.at))
		} else {
			s.store.Put(key, store.PageEntry(ev.res.page, ev.res.at))
		}
		return Completion{Handle: p.handle}, true
	}

	err := ev.res.err
	kind := reddit.Classify(err)
	if kind.Retryable() && p.attempt < s.policy.MaxAttempts {
		delay := s.policy.retryDelay(p.attempt, err)
		p.phase = PhaseRetrying
		p.lastErr = err
		p.nextAttempt = s.now().Add(delay)
		s.logger.Printf("fetch %s: attempt %d/%d failed (%v), retrying in %s", key, p.attempt, s.policy.MaxAttempts, err, delay)
		p.stopTimer = s.afterFunc(delay, func() {
			s.post(Event{p: p, retry: true})
		})
		return Completion{}, false
	}

	s.logger.Printf("fetch %s: giving up after %d attempt(s): %v", key, p.attempt, err)
	delete(s.pending, key)
	s.store.Put(key, store.FailedEntry(err, ev.res.at))
	return Completion{Handle: p.handle, Err: fmt.Errorf("fetch %s: %w", key, err)}, true
}

func (s *Scheduler) live(p *pending) bool {
	return !p.cancelled && s.pending[p.handle.Key] == p
}

func (s *Scheduler) drop(p *pending) {
	key := p.handle.Key
	p.cancelled = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.stopTimer != nil {
		p.stopTimer()
		p.stopTimer = nil
	}
	if p.phase == PhaseQueued {
		s.dequeue(p)
	}
	if s.pending[key] == p {
		delete(s.pending, key)
	}
	if e, ok := s.store.Peek(key); ok && e.State == store.StatePending {
		s.store.Invalidate(key)
	}
}

func (s *Scheduler) enqueue(p *pending) {
	s.queue = append(s.queue, p)
	s.sortQueue()
}

func (s *Scheduler) dequeue(p *pending) {
	for i, q := range s.queue {
		if q == p {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// sortQueue keeps the queue ordered by priority, then arrival.
func (s *Scheduler) sortQueue() {
	for i := 1; i < len(s.queue); i++ {
		for j := i; j > 0 && before(s.queue[j], s.queue[j-1]); j-- {
			s.queue[j], s.queue[j-1] = s.queue[j-1], s.queue[j]
		}
	}
}

func before(a, b *pending) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func (s *Scheduler) pump() {
	for s.running < s.maxInFlight && len(s.queue) > 0 {
		p := s.queue[0]
		s.queue = s.queue[1:]
		s.dispatch(p)
	}
}

func (s *Scheduler) dispatch(p *pending) {
	p.attempt++
	p.phase = PhaseRunning
	ctx, cancel := context.WithTimeout(s.ctx, s.policy.AttemptTimeout)
	p.cancel = cancel
	s.running++

	key := p.handle.Key
	attempt := p.attempt
	go func() {
		defer cancel()
		res := s.call(ctx, key)
		s.post(Event{p: p, attempt: attempt, res: res})
	}()
}

func (s *Scheduler) call(ctx context.Context, key store.Key) result {
	var res result
	switch key.Kind {
	case store.KindSubreddits:
		res.page, res.err = s.client.FetchSubreddits(ctx, key.Cursor)
	case store.KindListing:
		res.page, res.err = s.client.FetchListing(ctx, key.ID, key.Sort, key.Cursor)
	case store.KindComments:
		res.frag, res.err = s.client.FetchComments(ctx, key.ID, key.Cursor)
	default:
		res.err = &reddit.APIError{Kind: reddit.KindFatal, Err: fmt.Errorf("unknown key kind %v", key.Kind)}
	}
	res.at = s.now()
	return res
}

func (s *Scheduler) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}
