package natsx

import (
	"testing"
	"time"

	"golang.org/x/net/context"
)

func TestSeenOnce(t *testing.T) {
	s := NewMemIdem(time.Minute)
	seen, err := s.SeenOnce("k1", 0)
	if err != nil || seen {
		t.Fatalf("first sighting must not be seen: seen=%v err=%v", seen, err)
	}
	seen, _ = s.SeenOnce("k1", 0)
	if !seen {
		t.Fatalf("second sighting must be seen")
	}
	seen, _ = s.SeenOnce("k2", 0)
	if seen {
		t.Fatalf("different key must not be seen")
	}
}

func TestIdemMiddlewareDropsDuplicates(t *testing.T) {
	calls := 0
	h := func(ctx context.Context, msg Message) error {
		calls++
		return nil
	}
	wrapped := Chain(h, IdemMiddleware(NewMemIdem(time.Minute), time.Minute))

	msg := Message{
		Subject: ConversationSubject("c1"),
		Data:    []byte(`{"id":"env1"}`),
		Header:  map[string]string{"Nats-Msg-Id": "env1"},
	}
	for i := 0; i < 3; i++ {
		if err := wrapped(context.Background(), msg); err != nil {
			t.Fatalf("handler err: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("duplicate envelope reached the handler %d times", calls)
	}
}

func TestConversationSubjectRoundTrip(t *testing.T) {
	subj := ConversationSubject("c42")
	if got := ConversationFromSubject(subj); got != "c42" {
		t.Fatalf("round trip broken: %q", got)
	}
	if got := ConversationFromSubject("orders.c42"); got != "" {
		t.Fatalf("foreign subject must map to empty, got %q", got)
	}
}
