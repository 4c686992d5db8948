package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"Parley/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Address     []string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
}

func applyConfigToOptions(cfg *Config) (*options.ClientOptions, error) {
	var opts *options.ClientOptions
	switch {
	case cfg.Uri != "":
		opts = options.Client().ApplyURI(cfg.Uri)
	case len(cfg.Address) > 0:
		opts = options.Client().SetHosts(cfg.Address)
	default:
		return nil, errs.New("mongo uri or address is required")
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}
	return opts, nil
}

func connect(ctx context.Context, cfg *Config) (*mongo.Database, error) {
	opts, err := applyConfigToOptions(cfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(cctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	db := cfg.Database
	if db == "" {
		db = "parley"
	}
	return cli.Database(db), nil
}

type Manager struct {
	mu        sync.RWMutex
	db        *mongo.Database
	readyCh   chan struct{} // closed exactly once on first successful connect
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = Manager{readyCh: make(chan struct{})}

// StartAsync runs until ctx.Done(): connects with exponential backoff and
// jitter, closes the ready channel on first success, reconnects when the
// periodic health ping fails repeatedly.
func StartAsync(ctx context.Context, cfg *Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			// connect phase
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				db, err := connect(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.db = db
					globalMgr.mu.Unlock()
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break
				}
				globalMgr.lastErr.Store(err)

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// health phase
			fail := 0
			ticker := time.NewTicker(healthEvery)
			func() {
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						globalMgr.mu.Lock()
						if globalMgr.db != nil {
							_ = globalMgr.db.Client().Disconnect(context.Background())
							globalMgr.db = nil
						}
						globalMgr.mu.Unlock()
						return
					case <-ticker.C:
						globalMgr.mu.RLock()
						db := globalMgr.db
						globalMgr.mu.RUnlock()
						if db == nil {
							return
						}
						if err := db.Client().Ping(ctx, nil); err != nil {
							fail++
							globalMgr.lastErr.Store(err)
							if fail >= failThresh {
								globalMgr.mu.Lock()
								if globalMgr.db != nil {
									_ = globalMgr.db.Client().Disconnect(context.Background())
									globalMgr.db = nil
								}
								globalMgr.mu.Unlock()
								return
							}
						} else {
							fail = 0
						}
					}
				}
			}()
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
}

// WaitReady blocks until the first successful connect or ctx.Done().
func WaitReady(ctx context.Context) error {
	globalMgr.mu.RLock()
	ready := globalMgr.db != nil
	globalMgr.mu.RUnlock()
	if ready {
		return nil
	}
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the most recent connection error.
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic(fmt.Sprintf("Mongo not ready: wait WaitReady first (last err: %v)", Err()))
	}
	return globalMgr.db
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		return nil, false
	}
	return globalMgr.db, true
}
