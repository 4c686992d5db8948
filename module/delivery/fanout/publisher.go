package fanout

import (
	"context"

	"Parley/logger"
	"Parley/module/delivery/mailbox"
	"Parley/module/delivery/model"
	"Parley/module/delivery/receipt"
)

// Broker is the external pub/sub push path, keyed by conversation id.
// The NATS implementation lives in service/natsx.
type Broker interface {
	Publish(ctx context.Context, conversationID string, env *model.Envelope) error
}

// Publisher fans one envelope out to the broker channel and to every
// member's mailbox. The two paths are deliberately redundant: broker is
// push for live subscribers, mailbox is pull via long-poll; collapsing the
// double delivery is the client-side reconciliation's job.
type Publisher struct {
	broker Broker
	boxes  *mailbox.Store
	ledger *receipt.Ledger
}

func NewPublisher(broker Broker, boxes *mailbox.Store, ledger *receipt.Ledger) *Publisher {
	return &Publisher{broker: broker, boxes: boxes, ledger: ledger}
}

// PublishMessage distributes a freshly persisted message. Receipts are
// created first (sender pre-marked READ), then the broker leg runs, then
// the mailbox leg. A broker failure is logged and swallowed: the mailbox
// path is the availability fallback and must not be prevented.
func (p *Publisher) PublishMessage(ctx context.Context, conversationID string, members []string, pay model.MessagePayload) *model.Envelope {
	p.ledger.Create(pay.ID, pay.SenderID, members)

	env := model.NewEnvelope(model.KindMessage, pay)
	p.publish(ctx, conversationID, members, pay.SenderID, env)
	return env
}

// PublishRead tells the other members (in practice: the sender's UI) that
// a recipient has read a message.
func (p *Publisher) PublishRead(ctx context.Context, conversationID string, members []string, pay model.ReadPayload) *model.Envelope {
	env := model.NewEnvelope(model.KindRead, pay)
	p.publish(ctx, conversationID, members, pay.UserID, env)
	return env
}

// PublishPresence fans an online/offline transition out to the members.
func (p *Publisher) PublishPresence(ctx context.Context, conversationID string, members []string, pay model.PresencePayload) *model.Envelope {
	env := model.NewEnvelope(model.KindPresence, pay)
	p.publish(ctx, conversationID, members, pay.UserID, env)
	return env
}

func (p *Publisher) publish(ctx context.Context, conversationID string, members []string, originID string, env *model.Envelope) {
	if p.broker != nil {
		if err := p.broker.Publish(ctx, conversationID, env); err != nil {
			logger.Warnf("[fanout] broker publish conv=%s env=%s: %v", conversationID, env.ID, err)
		}
	}

	for _, uid := range members {
		if uid == originID {
			// The origin already holds its own optimistic copy.
			continue
		}
		p.boxes.Enqueue(uid, env.For(uid))
	}
}
