package chat

import (
	"context"

	"Parley/logger"
	"Parley/module/chat/service"
	"Parley/module/delivery/model"
	"Parley/service/natsx"

	xctx "golang.org/x/net/context"
)

// Bridge is the broker's push edge: it subscribes to every conversation
// subject and forwards envelopes to the websocket subscribers of that
// conversation. Together with the long-poll mailbox path this realizes
// the deliberately redundant dual delivery.
type Bridge struct {
	mgr *ConnManager
	fan *Fanout
	svc *service.Service
}

func NewBridge(mgr *ConnManager, fan *Fanout, svc *service.Service) *Bridge {
	return &Bridge{mgr: mgr, fan: fan, svc: svc}
}

// Start attaches the wildcard subscription. Queue group stays empty:
// every process with connected clients needs its own copy.
func (b *Bridge) Start() error {
	return natsx.Subscribe(natsx.SubjectWildcard, "", b.onBrokerMsg)
}

func (b *Bridge) onBrokerMsg(ctx xctx.Context, msg natsx.Message) error {
	convID := natsx.ConversationFromSubject(msg.Subject)
	if convID == "" {
		return nil
	}
	env, err := natsx.ParseEnvelope(msg.Data)
	if err != nil {
		logger.Warnf("[bridge] bad envelope on %s: %v", msg.Subject, err)
		return nil
	}

	conns := b.mgr.ConvSubscribers(convID)
	if len(conns) == 0 {
		return nil
	}
	frame := (&Frame{Type: FrameEnvelope, ConversationID: convID, Envelope: env}).Marshal()
	b.fan.Broadcast(conns, frame)

	// A pushed message counts as delivered for every subscribed user
	// except its sender.
	if env.Kind == model.KindMessage {
		pay, err := env.DecodeMessage()
		if err != nil {
			return nil
		}
		seen := make(map[string]bool, len(conns))
		for _, c := range conns {
			if c.UserID == pay.SenderID || seen[c.UserID] {
				continue
			}
			seen[c.UserID] = true
			b.svc.ObserveDelivered(context.Background(), c.UserID, pay.ID)
		}
	}
	return nil
}
