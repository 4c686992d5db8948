package reconcile

import (
	"strings"

	"Parley/logger"
)

// TempIDPrefix marks ids of locally created, not-yet-confirmed messages.
// Inside this package pending vs confirmed is an explicit state, the
// prefix only survives at the wire boundary.
const TempIDPrefix = "temp_"

type State int

const (
	StatePending State = iota + 1
	StateConfirmed
)

// Key is the natural match between an optimistic message and its
// server-confirmed echo.
type Key struct {
	ConversationID string
	SenderID       string
	Content        string
}

// Message is one entry of the client-side message list.
type Message struct {
	State     State
	ID        string
	Key       Key
	Timestamp string
}

func NewPending(localID string, key Key, ts string) Message {
	if !strings.HasPrefix(localID, TempIDPrefix) {
		localID = TempIDPrefix + localID
	}
	return Message{State: StatePending, ID: localID, Key: key, Timestamp: ts}
}

func NewConfirmed(id string, key Key, ts string) Message {
	return Message{State: StateConfirmed, ID: id, Key: key, Timestamp: ts}
}

// FromWire classifies a message coming off the broker or long-poll path.
func FromWire(id string, key Key, ts string) Message {
	if strings.HasPrefix(id, TempIDPrefix) {
		return Message{State: StatePending, ID: id, Key: key, Timestamp: ts}
	}
	return Message{State: StateConfirmed, ID: id, Key: key, Timestamp: ts}
}

// Merge folds an incoming message into the existing list and returns the
// new list. It is applied for every arrival from either delivery path and
// right after a local optimistic send, and is idempotent against the
// publisher's dual-path redundancy:
//
//  1. an id already present is discarded,
//  2. a pending message is appended as a new optimistic entry,
//  3. a confirmed message replaces the oldest pending entry with the same
//     match key in place, or is appended when none matches.
//
// localUserID is the owner of the list; a confirmed own-message that finds
// no pending entry suggests the optimistic append was lost, so that branch
// warns instead of appending silently.
func Merge(existing []Message, in Message, localUserID string) []Message {
	for _, m := range existing {
		if m.ID == in.ID {
			return existing
		}
	}

	if in.State == StatePending {
		return append(existing, in)
	}

	// Oldest unmatched pending entry first, so two quick identical sends
	// pair FIFO instead of cross-matching.
	for i, m := range existing {
		if m.State == StatePending && m.Key == in.Key {
			out := append([]Message(nil), existing...)
			out[i] = in
			return out
		}
	}

	if in.Key.SenderID == localUserID {
		logger.Warnf("[reconcile] confirmed own message %s had no pending entry (conv=%s)", in.ID, in.Key.ConversationID)
	}
	return append(existing, in)
}
