package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/attendlog/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by Redis.
const KeyPrefix = "attendlog:minutes:"

// Redis is a MinutesCache backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient dials addr and pings it once.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedis wraps client; ttl <= 0 stores keys without expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(d ledger.Date) string {
	return KeyPrefix + d.String()
}

func (r *Redis) GetMany(ctx context.Context, dates []ledger.Date) (map[ledger.Date]int, error) {
	out := make(map[ledger.Date]int, len(dates))
	if len(dates) == 0 {
		return out, nil
	}
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = key(d)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget minutes: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		out[dates[i]] = n
	}
	return out, nil
}

func (r *Redis) SetMany(ctx context.Context, values map[ledger.Date]int) error {
	if len(values) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for d, v := range values {
		pipe.Set(ctx, key(d), v, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set minutes: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, date ledger.Date) error {
	if err := r.client.Del(ctx, key(date)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate %s: %w", date, err)
	}
	return nil
}

// Flush removes every key under KeyPrefix using SCAN.
func (r *Redis) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, KeyPrefix+"*", 1000).Result()
		if err != nil {
			return fmt.Errorf("scan minutes: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("flush minutes: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
