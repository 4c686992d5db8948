package receipt

import (
	"context"
	"sort"
	"sync"
	"time"

	"Parley/logger"
)

// Status is the per-(message, recipient) delivery state.
// Transitions only move forward: Sent < Delivered < Read.
type Status int

const (
	StatusSent Status = iota + 1
	StatusDelivered
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "SENT"
	case StatusDelivered:
		return "DELIVERED"
	case StatusRead:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

// Receipt is a snapshot of one (message, recipient) pair.
type Receipt struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sink receives successful transitions for durable storage. The store
// behind it must enforce the same monotonicity on its own writes.
type Sink interface {
	SaveReceiptStatus(ctx context.Context, messageID, userID string, st Status, at time.Time) error
}

type pairKey struct{ messageID, userID string }

// entry carries its own lock so unrelated pairs never serialize.
type entry struct {
	mu        sync.Mutex
	status    Status
	updatedAt time.Time
	senderID  string
}

// Ledger tracks receipt state in memory, one entry per pair, with
// compare-and-set forward-only transitions.
type Ledger struct {
	mu      sync.RWMutex
	pairs   map[pairKey]*entry
	byMsg   map[string][]string // messageID -> member ids, creation order
	senders map[string]string   // messageID -> sender id
	sink    Sink
	clock   func() time.Time
}

func NewLedger(sink Sink) *Ledger {
	return &Ledger{
		pairs:   make(map[pairKey]*entry),
		byMsg:   make(map[string][]string),
		senders: make(map[string]string),
		sink:    sink,
		clock:   time.Now,
	}
}

// Create registers one receipt per member in StatusSent; the sender's own
// receipt starts directly at StatusRead.
func (l *Ledger) Create(messageID, senderID string, members []string) {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, uid := range members {
		k := pairKey{messageID, uid}
		if _, ok := l.pairs[k]; ok {
			continue
		}
		st := StatusSent
		if uid == senderID {
			st = StatusRead
		}
		l.pairs[k] = &entry{status: st, updatedAt: now, senderID: senderID}
		l.byMsg[messageID] = append(l.byMsg[messageID], uid)
	}
	l.senders[messageID] = senderID
}

func (l *Ledger) lookup(messageID, userID string) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.pairs[pairKey{messageID, userID}]
	return e, ok
}

// advance moves the pair forward to `to` when `to` is strictly greater.
// A later-arriving lower-status signal is a no-op, never a regression.
func (l *Ledger) advance(ctx context.Context, messageID, userID string, to Status) bool {
	e, ok := l.lookup(messageID, userID)
	if !ok {
		return false
	}
	e.mu.Lock()
	if to <= e.status {
		e.mu.Unlock()
		return false
	}
	e.status = to
	e.updatedAt = l.clock()
	at := e.updatedAt
	e.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.SaveReceiptStatus(ctx, messageID, userID, to, at); err != nil {
			logger.Warnf("[receipt] persist %s msg=%s user=%s: %v", to, messageID, userID, err)
		}
	}
	return true
}

// MarkDelivered records the first delivery observation (broker event seen
// or mailbox drained). Idempotent.
func (l *Ledger) MarkDelivered(ctx context.Context, messageID, userID string) bool {
	return l.advance(ctx, messageID, userID, StatusDelivered)
}

// MarkRead records an explicit read acknowledgement. Wins over any
// concurrent MarkDelivered for the same pair.
func (l *Ledger) MarkRead(ctx context.Context, messageID, userID string) bool {
	return l.advance(ctx, messageID, userID, StatusRead)
}

func (l *Ledger) Get(messageID, userID string) (Receipt, bool) {
	e, ok := l.lookup(messageID, userID)
	if !ok {
		return Receipt{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Receipt{MessageID: messageID, UserID: userID, Status: e.status, UpdatedAt: e.updatedAt}, true
}

// Aggregate reports the minimum status across all non-sender receipts:
// the value behind a "seen by all" indicator. A message with no
// non-sender receipts is trivially fully read.
func (l *Ledger) Aggregate(messageID string) Status {
	l.mu.RLock()
	members := append([]string(nil), l.byMsg[messageID]...)
	sender := l.senders[messageID]
	l.mu.RUnlock()

	min := StatusRead
	for _, uid := range members {
		if uid == sender {
			continue
		}
		r, ok := l.Get(messageID, uid)
		if !ok {
			continue
		}
		if r.Status < min {
			min = r.Status
		}
	}
	return min
}

// List returns all receipts for a message sorted by user id.
func (l *Ledger) List(messageID string) []Receipt {
	l.mu.RLock()
	members := append([]string(nil), l.byMsg[messageID]...)
	l.mu.RUnlock()

	out := make([]Receipt, 0, len(members))
	for _, uid := range members {
		if r, ok := l.Get(messageID, uid); ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Known reports whether the ledger holds receipts for the message.
func (l *Ledger) Known(messageID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.senders[messageID]
	return ok
}
