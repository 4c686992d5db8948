package mailbox

import (
	"context"
	"sync"
	"time"

	"Parley/module/delivery/model"
	"Parley/tools/safe"
)

// ===== Config =====

type Config struct {
	Cap          int           // max envelopes per recipient; oldest evicted beyond this
	PollInterval time.Duration // fallback re-check interval while a drain waits
	IdleTTL      time.Duration // empty, watcher-less boxes older than this are dropped
	SweepEvery   time.Duration // sweeper period
	Clock        func() time.Time
}

func (c *Config) norm() {
	if c.Cap <= 0 {
		c.Cap = 256
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ===== Store =====

// box is the per-recipient FIFO. Exclusively owned by one recipient id;
// enqueue from the publisher must never be blocked by an in-progress drain.
type box struct {
	mu         sync.Mutex
	items      []*model.Envelope
	wake       chan struct{} // buffered(1), signaled on enqueue
	waiters    int
	lastActive time.Time
}

// Store holds the pending-delivery mailboxes, keyed by recipient id.
// Construct one at process start and inject it; it is volatile by design
// so it can later be swapped for a shared-cache implementation.
type Store struct {
	mu    sync.RWMutex
	boxes map[string]*box
	conf  Config

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewStore(conf Config) *Store {
	conf.norm()
	s := &Store{
		boxes:  make(map[string]*box),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	safe.Go(s.sweeper)
	return s
}

func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Store) getOrCreate(recipientID string) *box {
	s.mu.RLock()
	b, ok := s.boxes[recipientID]
	s.mu.RUnlock()
	if ok {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.boxes[recipientID]; ok {
		return b
	}
	b = &box{wake: make(chan struct{}, 1), lastActive: s.conf.Clock()}
	s.boxes[recipientID] = b
	return b
}

// Enqueue appends the envelope to the recipient's queue. Never blocks and
// never fails on a full queue: the oldest envelope is evicted instead,
// a fresher event supersedes a stale one for these payload kinds.
func (s *Store) Enqueue(recipientID string, env *model.Envelope) {
	if recipientID == "" || env == nil {
		return
	}
	b := s.getOrCreate(recipientID)
	b.mu.Lock()
	b.items = append(b.items, env)
	if over := len(b.items) - s.conf.Cap; over > 0 {
		b.items = append([]*model.Envelope(nil), b.items[over:]...)
	}
	b.lastActive = s.conf.Clock()
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Drain returns all queued envelopes for the recipient, waiting up to
// timeout when the box is empty. An empty result after the timeout is a
// normal outcome, not an error. Concurrent drains for the same recipient
// are tolerated; an envelope is handed to exactly one of them.
func (s *Store) Drain(ctx context.Context, recipientID string, timeout time.Duration) []*model.Envelope {
	b := s.getOrCreate(recipientID)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	// In-process we get a wake signal on enqueue; the ticker re-check stays
	// as the fallback for deployments where the box lives across a boundary.
	tick := time.NewTicker(s.conf.PollInterval)
	defer tick.Stop()

	b.mu.Lock()
	b.waiters++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.waiters--
		b.lastActive = s.conf.Clock()
		b.mu.Unlock()
	}()

	for {
		if out := b.take(); len(out) > 0 {
			return out
		}
		select {
		case <-b.wake:
		case <-tick.C:
		case <-deadline.C:
			return b.take()
		case <-ctx.Done():
			return b.take()
		case <-s.stopCh:
			return b.take()
		}
	}
}

// take removes and returns everything currently queued (read-and-remove).
func (b *box) take() []*model.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	out := b.items
	b.items = nil
	return out
}

// Len reports the number of queued envelopes for a recipient.
func (s *Store) Len(recipientID string) int {
	s.mu.RLock()
	b, ok := s.boxes[recipientID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// sweeper drops boxes that are empty, unwatched and idle past IdleTTL.
func (s *Store) sweeper() {
	t := time.NewTicker(s.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			cutoff := s.conf.Clock().Add(-s.conf.IdleTTL)
			s.mu.Lock()
			for id, b := range s.boxes {
				b.mu.Lock()
				idle := len(b.items) == 0 && b.waiters == 0 && b.lastActive.Before(cutoff)
				b.mu.Unlock()
				if idle {
					delete(s.boxes, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
