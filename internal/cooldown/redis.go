package cooldown

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps cooldowns in redis so several bot processes share them.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "cooldown"}
}

func (r *Redis) key(subject string, action Action) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, action, subject)
}

// reserveScript sets the key when absent and otherwise reports its remaining ttl in
// milliseconds. Both steps run inside redis, so only one caller can win an expired slot.
// A key stored without expiry gets the window attached and counts as taken.
var reserveScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return -1
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return tonumber(ARGV[2])
end
return ttl
`)

func (r *Redis) Reserve(ctx context.Context, subject string, action Action, window time.Duration, now time.Time) (Result, error) {
	if window <= 0 {
		return Result{}, ErrInvalidWindow
	}
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	remaining, err := reserveScript.Run(ctx, r.client, []string{r.key(subject, action)}, strconv.FormatInt(now.UnixMilli(), 10), ms).Int64()
	if err != nil {
		return Result{}, err
	}
	if remaining < 0 {
		return Result{Allowed: true}, nil
	}
	return Result{Allowed: false, Remaining: time.Duration(remaining) * time.Millisecond}, nil
}

func (r *Redis) Release(ctx context.Context, subject string, action Action) error {
	return r.client.Del(ctx, r.key(subject, action)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
