package model

import (
	"time"

	"Parley/tools"
	"Parley/tools/decode"
)

// Kind tags the payload carried by an envelope.
type Kind string

const (
	KindMessage  Kind = "message"
	KindRead     Kind = "read-receipt"
	KindPresence Kind = "presence"
)

// Envelope is the transient unit of fan-out. It is never persisted:
// loss on process restart is acceptable, delivery is at-least-once.
type Envelope struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"type"`
	RecipientID string         `json:"recipientId,omitempty"` // empty for broadcast (broker path)
	Payload     map[string]any `json:"payload"`
}

// MessagePayload is the typed shape behind KindMessage.
type MessagePayload struct {
	ID             string `json:"id"` // permanent message id, not the envelope id
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName,omitempty"`
	SenderImage    string `json:"senderImage,omitempty"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"` // ISO-8601
}

// ReadPayload is the typed shape behind KindRead.
type ReadPayload struct {
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	Timestamp      string `json:"timestamp"`
}

// PresencePayload is the typed shape behind KindPresence.
type PresencePayload struct {
	UserID    string `json:"userId"`
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

func NewEnvelope(kind Kind, payload any) *Envelope {
	return &Envelope{
		ID:      tools.RandMsgID(),
		Kind:    kind,
		Payload: decode.ToMap(payload),
	}
}

// For returns a copy of the envelope addressed to a single recipient.
// The mailbox path delivers per recipient; the broker path broadcasts.
func (e *Envelope) For(recipientID string) *Envelope {
	cp := *e
	cp.RecipientID = recipientID
	return &cp
}

// DecodeMessage decodes the payload as a MessagePayload.
// Typed decoding happens just above the transport edge; inside the core
// the payload stays opaque.
func (e *Envelope) DecodeMessage() (*MessagePayload, error) {
	return decode.Map[MessagePayload](e.Payload)
}

func (e *Envelope) DecodeRead() (*ReadPayload, error) {
	return decode.Map[ReadPayload](e.Payload)
}

func (e *Envelope) DecodePresence() (*PresencePayload, error) {
	return decode.Map[PresencePayload](e.Payload)
}

// ISOTime formats t the way envelope payloads carry timestamps.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
