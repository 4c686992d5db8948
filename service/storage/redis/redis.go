package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	redisMgr  *Manager
)

type Manager struct {
	client *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// InitRedis initializes the singleton manager.
func InitRedis(c Config) error {
	var initErr error
	redisOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = err
			return
		}

		redisMgr = &Manager{client: rdb}
	})
	return initErr
}

// GetRedis returns the shared client; InitRedis must have run.
func GetRedis() *redis.Client {
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

// TryGetRedis returns the shared client, or an error when InitRedis has
// not run (or failed). Callers that can degrade should prefer this over
// GetRedis.
func TryGetRedis() (*redis.Client, error) {
	if redisMgr == nil {
		return nil, errors.New("redis not initialized")
	}
	return redisMgr.client, nil
}

func CloseRedis() error {
	if redisMgr != nil && redisMgr.client != nil {
		return redisMgr.client.Close()
	}
	return nil
}
