package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hongjun500/chat-sync/internal/chat"
)

// Redis 基于 Redis 的快照存储，带 TTL。
// 面向无头客户端：进程重启后仍能延续同一会话的历史。
type Redis struct {
	cli *redis.Client
	key string
	ttl time.Duration
}

func NewRedis(addr string, db int, key string, ttl time.Duration) *Redis {
	cli := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return &Redis{cli: cli, key: key, ttl: ttl}
}

func (r *Redis) Save(ctx context.Context, snap *chat.RestoreSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("Redis.Save: %w", err)
	}
	if err := r.cli.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("Redis.Save: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context) (*chat.RestoreSnapshot, error) {
	data, err := r.cli.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Redis.Load: %w", err)
	}
	var snap chat.RestoreSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Redis.Load: %w", err)
	}
	return &snap, nil
}

func (r *Redis) Close() error { return r.cli.Close() }
