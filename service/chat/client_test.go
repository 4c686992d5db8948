package chat

import (
	"testing"
	"time"
)

func TestBroadcastSurvivesDisconnectRace(t *testing.T) {
	m := NewConnManager()
	fan := NewFanout(1, 8)
	c := NewClient("conn1", "alice", nil, 4)
	m.Add(c)
	m.Subscribe("conn1", "c1")

	// Subscriber snapshot taken, then the client disconnects before the
	// broadcast job runs.
	conns := m.ConvSubscribers("c1")
	m.Remove("conn1")
	c.Close()

	fan.Broadcast(conns, []byte(`{"type":"envelope"}`))

	// Give the worker time to process; a send on the closed queue would
	// panic and crash the test binary.
	time.Sleep(50 * time.Millisecond)
	if c.TrySend([]byte("x")) {
		t.Fatalf("send to a closed client must report false")
	}
}

func TestTrySendCountsDropsWhenFull(t *testing.T) {
	c := NewClient("conn1", "alice", nil, 1)
	if !c.TrySend([]byte("a")) {
		t.Fatalf("first send should fit the queue")
	}
	if c.TrySend([]byte("b")) {
		t.Fatalf("full queue must drop the frame")
	}
	if dropped := c.Close(); dropped != 1 {
		t.Fatalf("dropped %d frames, want 1", dropped)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewClient("conn1", "alice", nil, 1)
	c.Close()
	if dropped := c.Close(); dropped != 0 {
		t.Fatalf("second close reported %d drops", dropped)
	}
	if c.TrySend([]byte("x")) {
		t.Fatalf("send after close must report false")
	}
}
