package natsx

import (
	"context"
	"errors"
	"sync"

	"Parley/logger"
)

type pendingSub struct {
	subject string
	queue   string
	h       Handler
}

var (
	globalMgr *Manager
	startOnce sync.Once

	mu          sync.Mutex
	pendingSubs []pendingSub // subscriptions requested before StartNats
	defaultMws  []Middleware
)

// UseGlobalMiddlewares configures global middlewares (idempotency etc).
// Call before StartNats.
func UseGlobalMiddlewares(mws ...Middleware) {
	mu.Lock()
	defer mu.Unlock()
	defaultMws = append(defaultMws, mws...)
}

// StartNats starts the global manager exactly once and applies any
// subscriptions cached before startup.
func StartNats(cfg Config) {
	startOnce.Do(func() {
		mu.Lock()
		mws := append([]Middleware(nil), defaultMws...)
		mu.Unlock()

		mgr, err := NewManager(cfg, mws...)
		if err != nil {
			logger.Errorf("[natsx] start failed: %v", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		globalMgr = mgr
		for _, ps := range pendingSubs {
			if err := mgr.Subscribe(ps.subject, ps.queue, ps.h); err != nil {
				logger.Errorf("[natsx] subscribe %s failed: %v", ps.subject, err)
			}
		}
		pendingSubs = nil
		logger.Infof("[natsx] started, servers=%v", cfg.Servers)
	})
}

func StopNats() error {
	mu.Lock()
	defer mu.Unlock()
	if globalMgr == nil {
		return nil
	}
	err := globalMgr.Close()
	globalMgr = nil
	return err
}

// Subscribe registers h on subject; before startup it is cached and
// applied by StartNats.
func Subscribe(subject, queue string, h Handler) error {
	mu.Lock()
	defer mu.Unlock()
	if globalMgr == nil {
		pendingSubs = append(pendingSubs, pendingSub{subject, queue, h})
		return nil
	}
	return globalMgr.Subscribe(subject, queue, h)
}

// Publish sends via the global manager; requires StartNats to have run.
func Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	mu.Lock()
	m := globalMgr
	mu.Unlock()
	if m == nil {
		return errors.New("natsx not started")
	}
	return m.Publish(ctx, subject, data, hdr)
}

func PublishOnce(ctx context.Context, subject string, data []byte, hdr map[string]string, msgID string) error {
	mu.Lock()
	m := globalMgr
	mu.Unlock()
	if m == nil {
		return errors.New("natsx not started")
	}
	return m.PublishOnce(ctx, subject, data, hdr, msgID)
}
