package storage

import (
	"context"
	"time"

	rds "Parley/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: parley:presence:<user>
// Value is the transport currently attached ("ws" / "poll"); the TTL
// bounds how long a silent client still counts as online.
func presenceKey(user string) string { return "parley:presence:" + user }

// PresenceOnline marks the user online and renews the TTL. Presence is
// auxiliary: on a Redis outage this returns an error for the caller to
// log, it never takes the delivery path down.
func PresenceOnline(ctx context.Context, user, transport string, ttl time.Duration) error {
	cli, err := rds.TryGetRedis()
	if err != nil {
		return err
	}
	return cli.Set(ctx, presenceKey(user), transport, ttl).Err()
}

// PresenceOffline drops the key immediately.
func PresenceOffline(ctx context.Context, user string) error {
	cli, err := rds.TryGetRedis()
	if err != nil {
		return err
	}
	return cli.Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup reports whether the user currently counts as online.
func PresenceLookup(ctx context.Context, user string) (transport string, online bool, err error) {
	cli, err := rds.TryGetRedis()
	if err != nil {
		return "", false, err
	}
	val, err := cli.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// PresenceOnlineSet filters the given users down to the online ones.
func PresenceOnlineSet(ctx context.Context, users []string) (map[string]bool, error) {
	if len(users) == 0 {
		return map[string]bool{}, nil
	}
	cli, err := rds.TryGetRedis()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(users))
	for i, u := range users {
		keys[i] = presenceKey(u)
	}
	vals, err := cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(users))
	for i, v := range vals {
		out[users[i]] = v != nil
	}
	return out, nil
}
