package global

import (
	"context"

	"Parley/logger"
	midsec "Parley/middleware/security"
	mgoSrv "Parley/service/mgo"
	"Parley/service/natsx"
	redis "Parley/service/storage/redis"
	"Parley/tools"
	ids "Parley/tools/ids"
)

func ConfigAll() {
	ConfigIds()
	ConfigAuth()
	ConfigRedis()
	ConfigMgo()
	ConfigNats()
}

func ConfigIds() {
	ids.SetNodeID(int64(tools.GetEnvInt("PARLEY_NODE_ID", 100)))
}

func GetJwtSecret() []byte {
	return []byte(tools.GetEnv("PARLEY_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="))
}

func ConfigAuth() {
	midsec.Init(GetJwtSecret())
}

func ConfigRedis() {
	config := redis.Config{
		Addr:     tools.GetEnv("PARLEY_REDIS_ADDR", "127.0.0.1:6379"),
		Password: tools.GetEnv("PARLEY_REDIS_PASSWORD", ""),
		DB:       tools.GetEnvInt("PARLEY_REDIS_DB", 0),
		PoolSize: tools.GetEnvInt("PARLEY_REDIS_POOL", 20),
	}
	if err := redis.InitRedis(config); err != nil {
		logger.Errorf("[boot] redis init failed, presence degraded: %v", err)
	}
}

func ConfigMgo() {
	cfg := &mgoSrv.Config{
		Uri:         tools.GetEnv("PARLEY_MONGO_URI", "mongodb://localhost:27017"),
		Database:    tools.GetEnv("PARLEY_MONGO_DB", "parley"),
		Username:    tools.GetEnv("PARLEY_MONGO_USER", ""),
		Password:    tools.GetEnv("PARLEY_MONGO_PASSWORD", ""),
		MaxPoolSize: tools.GetEnvInt("PARLEY_MONGO_POOL", 20),
	}
	mgoSrv.StartAsync(context.Background(), cfg)
}

func ConfigNats() {
	natsx.StartNats(natsx.Config{
		Servers: []string{tools.GetEnv("PARLEY_NATS_URL", "nats://127.0.0.1:4222")},
		Name:    "parley-delivery",
	})
}
