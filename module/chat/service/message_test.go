package service

import (
	"context"
	"testing"
	"time"

	chatmodel "Parley/module/chat/model"
	"Parley/module/delivery/fanout"
	"Parley/module/delivery/mailbox"
	"Parley/module/delivery/model"
	"Parley/module/delivery/receipt"
	"Parley/tools/errs"
	"Parley/tools/ids"
)

type memStore struct {
	convs    map[string]*chatmodel.Conversation
	messages map[string]*chatmodel.MessageModel
	users    map[string]*chatmodel.UserModel
	receipts map[string][]*chatmodel.ReceiptModel
}

func newMemStore() *memStore {
	return &memStore{
		convs:    map[string]*chatmodel.Conversation{},
		messages: map[string]*chatmodel.MessageModel{},
		users:    map[string]*chatmodel.UserModel{},
		receipts: map[string][]*chatmodel.ReceiptModel{},
	}
}

func (s *memStore) GetConversation(_ context.Context, id string) (*chatmodel.Conversation, error) {
	c, ok := s.convs[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation", "id", id)
	}
	return c, nil
}

func (s *memStore) InsertMessage(_ context.Context, m *chatmodel.MessageModel) error {
	s.messages[m.MessageID] = m
	return nil
}

func (s *memStore) InsertReceipts(_ context.Context, convID, msgID, senderID string, members []string, at time.Time) error {
	for _, uid := range members {
		st := int(receipt.StatusSent)
		if uid == senderID {
			st = int(receipt.StatusRead)
		}
		s.receipts[msgID] = append(s.receipts[msgID], &chatmodel.ReceiptModel{
			MessageID: msgID, UserID: uid, ConversationID: convID, Status: st, UpdatedAt: at,
		})
	}
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id string) (*chatmodel.MessageModel, error) {
	m, ok := s.messages[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message", "id", id)
	}
	return m, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*chatmodel.UserModel, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user", "id", id)
	}
	return u, nil
}

func (s *memStore) ListReceipts(_ context.Context, msgID string) ([]*chatmodel.ReceiptModel, error) {
	return s.receipts[msgID], nil
}

func (s *memStore) UpsertConversation(_ context.Context, c *chatmodel.Conversation) error {
	s.convs[c.ConversationID] = c
	return nil
}

func (s *memStore) ListMessages(_ context.Context, convID string, limit int64) ([]*chatmodel.MessageModel, error) {
	var out []*chatmodel.MessageModel
	for _, m := range s.messages {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestService(st *memStore) (*Service, *mailbox.Store, *receipt.Ledger) {
	ids.SetNodeID(1)
	boxes := mailbox.NewStore(mailbox.Config{})
	ledger := receipt.NewLedger(nil)
	pub := fanout.NewPublisher(nil, boxes, ledger)
	return New(st, pub, ledger), boxes, ledger
}

func seedConv(st *memStore, id string, members ...string) {
	st.convs[id] = &chatmodel.Conversation{ConversationID: id, MemberIDs: members}
}

func TestSendPersistsAndFansOut(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob")
	svc, boxes, ledger := newTestService(st)
	defer boxes.Close()

	m, err := svc.Send(context.Background(), "alice", "c1", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.MessageID == "" || m.MessageID[:2] != "m_" {
		t.Fatalf("permanent id missing: %q", m.MessageID)
	}
	if _, ok := st.messages[m.MessageID]; !ok {
		t.Fatalf("message not persisted")
	}
	if len(st.receipts[m.MessageID]) != 2 {
		t.Fatalf("receipt rows not created: %d", len(st.receipts[m.MessageID]))
	}
	if n := boxes.Len("bob"); n != 1 {
		t.Fatalf("bob's mailbox should hold the envelope, has %d", n)
	}
	if n := boxes.Len("alice"); n != 0 {
		t.Fatalf("sender must not get a mailbox copy, has %d", n)
	}
	r, _ := ledger.Get(m.MessageID, "alice")
	if r.Status != receipt.StatusRead {
		t.Fatalf("sender receipt %v, want READ", r.Status)
	}
}

func TestSendRejectsNonMember(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob")
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	_, err := svc.Send(context.Background(), "mallory", "c1", "hi")
	if !errs.ErrNoPermission.Is(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if len(st.messages) != 0 {
		t.Fatalf("rejected send must not persist")
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice")
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	if _, err := svc.Send(context.Background(), "alice", "c1", ""); !errs.ErrArgs.Is(err) {
		t.Fatalf("expected args error, got %v", err)
	}
}

func TestMarkReadBroadcastsOnce(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob")
	svc, boxes, ledger := newTestService(st)
	defer boxes.Close()

	m, err := svc.Send(context.Background(), "alice", "c1", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// bob drains the message envelope first
	boxes.Drain(context.Background(), "bob", time.Second)

	if err := svc.MarkRead(context.Background(), "bob", m.MessageID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	r, _ := ledger.Get(m.MessageID, "bob")
	if r.Status != receipt.StatusRead {
		t.Fatalf("bob's receipt %v, want READ", r.Status)
	}
	out := boxes.Drain(context.Background(), "alice", time.Second)
	if len(out) != 1 || out[0].Kind != model.KindRead {
		t.Fatalf("alice should see one read-receipt envelope: %+v", out)
	}

	// Second read is a no-op: no second broadcast.
	if err := svc.MarkRead(context.Background(), "bob", m.MessageID); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if n := boxes.Len("alice"); n != 0 {
		t.Fatalf("idempotent read must not re-broadcast, alice has %d", n)
	}
}

func TestMarkReadSeedsLedgerFromStore(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob")
	svc, boxes, ledger := newTestService(st)
	defer boxes.Close()

	// A message persisted by a previous process: rows exist, ledger empty.
	st.messages["m_old"] = &chatmodel.MessageModel{
		MessageID: "m_old", ConversationID: "c1", SenderID: "alice", Content: "old",
	}
	_ = st.InsertReceipts(context.Background(), "c1", "m_old", "alice", []string{"alice", "bob"}, time.Now())

	if err := svc.MarkRead(context.Background(), "bob", "m_old"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !ledger.Known("m_old") {
		t.Fatalf("ledger not seeded")
	}
	r, _ := ledger.Get("m_old", "bob")
	if r.Status != receipt.StatusRead {
		t.Fatalf("status %v, want READ", r.Status)
	}
}

func TestObserveDeliveredUnknownMessage(t *testing.T) {
	st := newMemStore()
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	// Must be a silent no-op for ids the store has never seen.
	svc.ObserveDelivered(context.Background(), "bob", "m_ghost")
}

func TestReceiptsAggregate(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob", "carol")
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	m, err := svc.Send(context.Background(), "alice", "c1", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	svc.ObserveDelivered(context.Background(), "bob", m.MessageID)

	out, err := svc.Receipts(context.Background(), "alice", m.MessageID)
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	if out.Aggregate != "SENT" {
		t.Fatalf("carol has not seen it, aggregate %s", out.Aggregate)
	}
	if len(out.Receipts) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(out.Receipts))
	}

	if _, err := svc.Receipts(context.Background(), "mallory", m.MessageID); !errs.ErrNoPermission.Is(err) {
		t.Fatalf("outsider must not read receipts, got %v", err)
	}
}

func TestCreateConversationIncludesCreator(t *testing.T) {
	st := newMemStore()
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	conv, err := svc.CreateConversation(context.Background(), "alice", "", "pair", []string{"bob"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ConversationID == "" || conv.ConversationID[:2] != "c_" {
		t.Fatalf("generated id missing: %q", conv.ConversationID)
	}
	if !conv.HasMember("alice") || !conv.HasMember("bob") {
		t.Fatalf("members wrong: %v", conv.MemberIDs)
	}
	if _, ok := st.convs[conv.ConversationID]; !ok {
		t.Fatalf("conversation not persisted")
	}
}

func TestHistoryRequiresMembership(t *testing.T) {
	st := newMemStore()
	seedConv(st, "c1", "alice", "bob")
	svc, boxes, _ := newTestService(st)
	defer boxes.Close()

	if _, err := svc.Send(context.Background(), "alice", "c1", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := svc.History(context.Background(), "bob", "c1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if _, err := svc.History(context.Background(), "mallory", "c1", 10); !errs.ErrNoPermission.Is(err) {
		t.Fatalf("outsider must be rejected, got %v", err)
	}
}
