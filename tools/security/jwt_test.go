package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("unit-test-secret"))
	token, exp, err := Generate(opts, "alice", "Alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", exp)
	}
	uid, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "alice" {
		t.Fatalf("subject %q, want alice", uid)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "alice", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatalf("token signed with a different secret must fail")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	opts.TTL = -time.Minute
	token, _, err := Generate(opts, "alice", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(opts, token); err == nil {
		t.Fatalf("expired token must fail verification")
	}
}

func TestUnsupportedAlgRejected(t *testing.T) {
	opts := Options{Secret: []byte("s"), Alg: "RS256"}
	if _, _, err := Generate(opts, "alice", ""); err == nil {
		t.Fatalf("non-HMAC alg must be rejected")
	}
}
