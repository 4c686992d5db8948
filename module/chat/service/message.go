package service

import (
	"context"
	"time"

	chatmodel "Parley/module/chat/model"
	"Parley/module/delivery/fanout"
	"Parley/module/delivery/model"
	"Parley/module/delivery/receipt"
	"Parley/tools/errs"
	"Parley/tools/ids"
)

// Persistence is the slice of the store the delivery flow needs. The
// Mongo store satisfies it; tests plug in an in-memory fake.
type Persistence interface {
	GetConversation(ctx context.Context, conversationID string) (*chatmodel.Conversation, error)
	InsertMessage(ctx context.Context, m *chatmodel.MessageModel) error
	InsertReceipts(ctx context.Context, conversationID, messageID, senderID string, members []string, at time.Time) error
	GetMessage(ctx context.Context, messageID string) (*chatmodel.MessageModel, error)
	GetUser(ctx context.Context, userID string) (*chatmodel.UserModel, error)
	ListReceipts(ctx context.Context, messageID string) ([]*chatmodel.ReceiptModel, error)
	UpsertConversation(ctx context.Context, c *chatmodel.Conversation) error
	ListMessages(ctx context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error)
}

type Service struct {
	store  Persistence
	pub    *fanout.Publisher
	ledger *receipt.Ledger
}

func New(store Persistence, pub *fanout.Publisher, ledger *receipt.Ledger) *Service {
	return &Service{store: store, pub: pub, ledger: ledger}
}

// Send persists the message and fans it out. Persistence failures abort
// before any fan-out: an envelope must never describe a message a
// recipient cannot re-fetch later.
func (s *Service) Send(ctx context.Context, senderID, conversationID, content string) (*chatmodel.MessageModel, error) {
	if content == "" {
		return nil, errs.ErrArgs.WrapMsg("empty content")
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(senderID) {
		return nil, errs.ErrNoPermission.WrapMsg("not a conversation member", "user", senderID)
	}

	now := time.Now()
	m := &chatmodel.MessageModel{
		MessageID:      "m_" + ids.GenerateString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}
	if u, err := s.store.GetUser(ctx, senderID); err == nil {
		m.SenderName = u.Name
		m.SenderImage = u.ImageURL
	}

	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.InsertReceipts(ctx, conversationID, m.MessageID, senderID, conv.MemberIDs, now); err != nil {
		return nil, err
	}

	s.pub.PublishMessage(ctx, conversationID, conv.MemberIDs, model.MessagePayload{
		ID:             m.MessageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     m.SenderName,
		SenderImage:    m.SenderImage,
		Content:        content,
		Timestamp:      model.ISOTime(now),
	})
	return m, nil
}

// MarkRead advances the caller's receipt to READ and tells the rest of
// the conversation so the sender's UI can update.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) error {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.store.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(userID) {
		return errs.ErrNoPermission.WrapMsg("not a conversation member", "user", userID)
	}

	// Receipts for messages sent before this process started are only in
	// the store; seed the ledger so the CAS has something to advance.
	if !s.ledger.Known(messageID) {
		s.ledger.Create(messageID, m.SenderID, conv.MemberIDs)
	}
	if !s.ledger.MarkRead(ctx, messageID, userID) {
		return nil // already READ, nothing to broadcast
	}

	s.pub.PublishRead(ctx, m.ConversationID, conv.MemberIDs, model.ReadPayload{
		MessageID:      messageID,
		UserID:         userID,
		ConversationID: m.ConversationID,
		Timestamp:      model.ISOTime(time.Now()),
	})
	return nil
}

// ObserveDelivered is the delivery-confirmation path: called when a
// drained or pushed "message" envelope reaches userID.
func (s *Service) ObserveDelivered(ctx context.Context, userID, messageID string) {
	if !s.ledger.Known(messageID) {
		m, err := s.store.GetMessage(ctx, messageID)
		if err != nil {
			return
		}
		conv, err := s.store.GetConversation(ctx, m.ConversationID)
		if err != nil {
			return
		}
		s.ledger.Create(messageID, m.SenderID, conv.MemberIDs)
	}
	s.ledger.MarkDelivered(ctx, messageID, userID)
}

// ReceiptSummary is what the receipts endpoint returns.
type ReceiptSummary struct {
	MessageID string            `json:"messageId"`
	Aggregate string            `json:"aggregate"` // min status over non-sender receipts
	Receipts  []receipt.Receipt `json:"receipts"`
}

// Receipts reports the per-member states plus the aggregate seen-state.
func (s *Service) Receipts(ctx context.Context, userID, messageID string) (*ReceiptSummary, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversation(ctx, m.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrNoPermission.WrapMsg("not a conversation member", "user", userID)
	}

	if !s.ledger.Known(messageID) {
		// Rehydrate from the durable rows.
		rows, err := s.store.ListReceipts(ctx, messageID)
		if err != nil {
			return nil, err
		}
		s.ledger.Create(messageID, m.SenderID, conv.MemberIDs)
		for _, r := range rows {
			switch receipt.Status(r.Status) {
			case receipt.StatusDelivered:
				s.ledger.MarkDelivered(ctx, r.MessageID, r.UserID)
			case receipt.StatusRead:
				s.ledger.MarkRead(ctx, r.MessageID, r.UserID)
			}
		}
	}

	return &ReceiptSummary{
		MessageID: messageID,
		Aggregate: s.ledger.Aggregate(messageID).String(),
		Receipts:  s.ledger.List(messageID),
	}, nil
}

// CreateConversation registers a conversation; the creator is always a
// member. Upsert keeps it idempotent for clients that retry.
func (s *Service) CreateConversation(ctx context.Context, creatorID, conversationID, name string, members []string) (*chatmodel.Conversation, error) {
	if conversationID == "" {
		conversationID = "c_" + ids.GenerateString()
	}
	has := false
	for _, uid := range members {
		if uid == creatorID {
			has = true
			break
		}
	}
	if !has {
		members = append(members, creatorID)
	}
	conv := &chatmodel.Conversation{
		ConversationID: conversationID,
		Name:           name,
		MemberIDs:      members,
		CreatedAt:      time.Now(),
	}
	if err := s.store.UpsertConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// History returns the conversation's persisted messages in creation
// order; this is the list the client reconciles arrivals into.
func (s *Service) History(ctx context.Context, userID, conversationID string, limit int64) ([]*chatmodel.MessageModel, error) {
	if err := s.Authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// Authorize verifies conversation membership for transports that attach
// before any message flows (websocket channel subscriptions).
func (s *Service) Authorize(ctx context.Context, userID, conversationID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(userID) {
		return errs.ErrNoPermission.WrapMsg("not a conversation member", "user", userID)
	}
	return nil
}

// Members resolves the member list (presence fan-out needs it).
func (s *Service) Members(ctx context.Context, conversationID string) ([]string, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conv.MemberIDs, nil
}

// PublishPresence pushes an online/offline transition onto a
// conversation's broker channel. Presence is push-only: it never lands in
// mailboxes, a stale presence event is worse than none.
func (s *Service) PublishPresence(ctx context.Context, conversationID, userID string, online bool) {
	s.pub.PublishPresence(ctx, conversationID, nil, model.PresencePayload{
		UserID:    userID,
		Online:    online,
		Timestamp: model.ISOTime(time.Now()),
	})
}
