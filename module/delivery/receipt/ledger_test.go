package receipt

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingSink) SaveReceiptStatus(_ context.Context, messageID, userID string, st Status, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, messageID+"/"+userID+"/"+st.String())
	if r.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestCreateSeedsStatuses(t *testing.T) {
	l := NewLedger(nil)
	l.Create("m1", "alice", []string{"alice", "bob", "carol"})

	r, ok := l.Get("m1", "alice")
	if !ok || r.Status != StatusRead {
		t.Fatalf("sender receipt should start READ, got %v ok=%v", r.Status, ok)
	}
	for _, uid := range []string{"bob", "carol"} {
		r, ok := l.Get("m1", uid)
		if !ok || r.Status != StatusSent {
			t.Fatalf("recipient %s should start SENT, got %v ok=%v", uid, r.Status, ok)
		}
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	l.Create("m1", "alice", []string{"alice", "bob"})

	if !l.MarkDelivered(ctx, "m1", "bob") {
		t.Fatalf("SENT -> DELIVERED should apply")
	}
	if l.MarkDelivered(ctx, "m1", "bob") {
		t.Fatalf("repeated DELIVERED should be a no-op")
	}
	if !l.MarkRead(ctx, "m1", "bob") {
		t.Fatalf("DELIVERED -> READ should apply")
	}
	if l.MarkDelivered(ctx, "m1", "bob") {
		t.Fatalf("DELIVERED after READ must not regress")
	}
	if l.MarkRead(ctx, "m1", "bob") {
		t.Fatalf("repeated READ should be a no-op")
	}
	r, _ := l.Get("m1", "bob")
	if r.Status != StatusRead {
		t.Fatalf("final status %v, want READ", r.Status)
	}
}

func TestReadSkipsDelivered(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	l.Create("m1", "alice", []string{"alice", "bob"})

	// A read ack can arrive before any delivery observation.
	if !l.MarkRead(ctx, "m1", "bob") {
		t.Fatalf("SENT -> READ should apply directly")
	}
	if l.MarkDelivered(ctx, "m1", "bob") {
		t.Fatalf("late DELIVERED after READ must be dropped")
	}
}

func TestUnknownPairIsIgnored(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	if l.MarkDelivered(ctx, "ghost", "bob") {
		t.Fatalf("unknown pair must not transition")
	}
}

func TestConcurrentMarksSettleOnRead(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	l.Create("m1", "alice", []string{"alice", "bob"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); l.MarkDelivered(ctx, "m1", "bob") }()
		go func() { defer wg.Done(); l.MarkRead(ctx, "m1", "bob") }()
	}
	wg.Wait()

	r, _ := l.Get("m1", "bob")
	if r.Status != StatusRead {
		t.Fatalf("race settled on %v, want READ", r.Status)
	}
}

func TestAggregateIsMinOverRecipients(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(nil)
	l.Create("m1", "alice", []string{"alice", "bob", "carol"})

	if got := l.Aggregate("m1"); got != StatusSent {
		t.Fatalf("fresh aggregate %v, want SENT", got)
	}
	l.MarkRead(ctx, "m1", "bob")
	if got := l.Aggregate("m1"); got != StatusSent {
		t.Fatalf("carol still SENT, aggregate %v", got)
	}
	l.MarkDelivered(ctx, "m1", "carol")
	if got := l.Aggregate("m1"); got != StatusDelivered {
		t.Fatalf("aggregate %v, want DELIVERED", got)
	}
	l.MarkRead(ctx, "m1", "carol")
	if got := l.Aggregate("m1"); got != StatusRead {
		t.Fatalf("aggregate %v, want READ", got)
	}
}

func TestSinkSeesTransitionsAndFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{fail: true}
	l := NewLedger(sink)
	l.Create("m1", "alice", []string{"alice", "bob"})

	if !l.MarkDelivered(ctx, "m1", "bob") {
		t.Fatalf("sink failure must not block the in-memory transition")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.calls) != 1 || sink.calls[0] != "m1/bob/DELIVERED" {
		t.Fatalf("sink calls: %v", sink.calls)
	}
}

func TestListSortedByUser(t *testing.T) {
	l := NewLedger(nil)
	l.Create("m1", "zoe", []string{"zoe", "bob", "ann"})
	out := l.List("m1")
	if len(out) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(out))
	}
	if out[0].UserID != "ann" || out[1].UserID != "bob" || out[2].UserID != "zoe" {
		t.Fatalf("not sorted: %v %v %v", out[0].UserID, out[1].UserID, out[2].UserID)
	}
}
