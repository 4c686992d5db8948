package natsx

import (
	"context"
	"strings"
	"sync"
	"time"
)

// IdemStore answers "has this key been seen before" exactly once per TTL.
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// memIdem is the single-process implementation.
type memIdem struct {
	mu  sync.Mutex
	m   map[string]int64 // key -> expireUnix
	ttl time.Duration
}

func NewMemIdem(defaultTTL time.Duration) IdemStore {
	mi := &memIdem{m: make(map[string]int64), ttl: defaultTTL}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for range t.C {
			now := time.Now().Unix()
			mi.mu.Lock()
			for k, exp := range mi.m {
				if exp <= now {
					delete(mi.m, k)
				}
			}
			mi.mu.Unlock()
		}
	}()
	return mi
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	exp := time.Now().Add(ttl).Unix()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if old, ok := mi.m[key]; ok && old > time.Now().Unix() {
		return true, nil
	}
	mi.m[key] = exp
	return false, nil
}

func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{"Nats-Msg-Id", "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// IdemMiddleware drops messages whose id has already been processed.
// The dual-path fan-out can deliver the same envelope more than once.
func IdemMiddleware(store IdemStore, ttl time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			id := msgIDFromHeader(msg.Header)
			if id == "" {
				// No id: fall back to a weak key of subject+body.
				id = msg.Subject + "|" + strings.TrimSpace(string(msg.Data))
			}
			seen, _ := store.SeenOnce(id, ttl)
			if seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
