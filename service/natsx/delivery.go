package natsx

import (
	"context"
	"encoding/json"
	"strings"

	"Parley/module/delivery/model"
)

// Conversation channels map onto NATS subjects under this prefix:
// conversation.<id>. The wildcard form feeds the websocket bridge.
const (
	subjectPrefix   = "conversation."
	SubjectWildcard = "conversation.>"
)

func ConversationSubject(conversationID string) string {
	return subjectPrefix + conversationID
}

// ConversationFromSubject recovers the conversation id, "" if foreign.
func ConversationFromSubject(subject string) string {
	if !strings.HasPrefix(subject, subjectPrefix) {
		return ""
	}
	return strings.TrimPrefix(subject, subjectPrefix)
}

// EnvelopeBroker adapts the global natsx publisher to the fan-out
// publisher's broker contract. Envelopes ride as JSON with the envelope
// id doubling as Nats-Msg-Id for consumer-side dedup.
type EnvelopeBroker struct{}

func (EnvelopeBroker) Publish(ctx context.Context, conversationID string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return PublishOnce(ctx, ConversationSubject(conversationID), data, nil, env.ID)
}

// ParseEnvelope decodes a broker message back into an envelope.
func ParseEnvelope(data []byte) (*model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
