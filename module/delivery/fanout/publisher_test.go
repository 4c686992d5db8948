package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"Parley/module/delivery/mailbox"
	"Parley/module/delivery/model"
	"Parley/module/delivery/receipt"
)

type fakeBroker struct {
	published []*model.Envelope
	fail      bool
}

func (b *fakeBroker) Publish(_ context.Context, _ string, env *model.Envelope) error {
	if b.fail {
		return errors.New("broker down")
	}
	b.published = append(b.published, env)
	return nil
}

func setup(fail bool) (*fakeBroker, *mailbox.Store, *receipt.Ledger, *Publisher) {
	broker := &fakeBroker{fail: fail}
	boxes := mailbox.NewStore(mailbox.Config{})
	ledger := receipt.NewLedger(nil)
	return broker, boxes, ledger, NewPublisher(broker, boxes, ledger)
}

func payload() model.MessagePayload {
	return model.MessagePayload{
		ID:             "m_1",
		ConversationID: "c1",
		SenderID:       "alice",
		Content:        "hi",
		Timestamp:      model.ISOTime(time.Now()),
	}
}

func TestPublishMessageSkipsSenderMailbox(t *testing.T) {
	broker, boxes, _, pub := setup(false)
	defer boxes.Close()

	pub.PublishMessage(context.Background(), "c1", []string{"alice", "bob", "carol"}, payload())

	if len(broker.published) != 1 {
		t.Fatalf("broker should see exactly one publish, got %d", len(broker.published))
	}
	if n := boxes.Len("alice"); n != 0 {
		t.Fatalf("sender mailbox must stay empty, has %d", n)
	}
	for _, uid := range []string{"bob", "carol"} {
		if n := boxes.Len(uid); n != 1 {
			t.Fatalf("recipient %s should hold 1 envelope, has %d", uid, n)
		}
	}
}

func TestPublishMessageCreatesReceipts(t *testing.T) {
	_, boxes, ledger, pub := setup(false)
	defer boxes.Close()

	pub.PublishMessage(context.Background(), "c1", []string{"alice", "bob"}, payload())

	r, ok := ledger.Get("m_1", "alice")
	if !ok || r.Status != receipt.StatusRead {
		t.Fatalf("sender receipt should be pre-created READ, got %v ok=%v", r.Status, ok)
	}
	r, ok = ledger.Get("m_1", "bob")
	if !ok || r.Status != receipt.StatusSent {
		t.Fatalf("recipient receipt should be SENT, got %v ok=%v", r.Status, ok)
	}
}

func TestBrokerFailureDoesNotBlockMailboxLeg(t *testing.T) {
	_, boxes, ledger, pub := setup(true)
	defer boxes.Close()

	env := pub.PublishMessage(context.Background(), "c1", []string{"alice", "bob"}, payload())
	if env == nil {
		t.Fatalf("publish must return the envelope even when the broker fails")
	}
	if n := boxes.Len("bob"); n != 1 {
		t.Fatalf("mailbox leg must still run on broker failure, bob has %d", n)
	}
	if !ledger.Known("m_1") {
		t.Fatalf("receipts must exist even when the broker fails")
	}
}

func TestMailboxEnvelopeIsAddressed(t *testing.T) {
	_, boxes, _, pub := setup(false)
	defer boxes.Close()

	sent := pub.PublishMessage(context.Background(), "c1", []string{"alice", "bob"}, payload())
	out := boxes.Drain(context.Background(), "bob", time.Second)
	if len(out) != 1 {
		t.Fatalf("expected 1 envelope for bob, got %d", len(out))
	}
	got := out[0]
	if got.RecipientID != "bob" {
		t.Fatalf("mailbox copy must be addressed, recipient=%q", got.RecipientID)
	}
	if got.ID != sent.ID {
		t.Fatalf("mailbox copy should share the envelope id (dedup key): %s vs %s", got.ID, sent.ID)
	}
	pay, err := got.DecodeMessage()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if pay.ID != "m_1" || pay.Content != "hi" {
		t.Fatalf("payload mangled: %+v", pay)
	}
}

func TestPublishReadReachesOtherMembers(t *testing.T) {
	_, boxes, _, pub := setup(false)
	defer boxes.Close()

	pub.PublishRead(context.Background(), "c1", []string{"alice", "bob"}, model.ReadPayload{
		MessageID: "m_1", UserID: "bob", ConversationID: "c1", Timestamp: model.ISOTime(time.Now()),
	})
	if n := boxes.Len("bob"); n != 0 {
		t.Fatalf("reader must not receive their own read receipt, has %d", n)
	}
	out := boxes.Drain(context.Background(), "alice", time.Second)
	if len(out) != 1 || out[0].Kind != model.KindRead {
		t.Fatalf("sender should get the read-receipt envelope: %+v", out)
	}
}
