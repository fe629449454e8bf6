package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps the pair under <prefix>:<profile>:<key>. Writes go
// through MULTI/EXEC so both keys change together.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

func NewRedisStorage(client *redis.Client, prefix, profile string) (*RedisStorage, error) {
	if client == nil {
		return nil, errors.New("session: redis client is nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "placecell"
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	return &RedisStorage{client: client, prefix: prefix + ":" + profile}, nil
}

func (r *RedisStorage) key(name string) string { return r.prefix + ":" + name }

func (r *RedisStorage) Load(ctx context.Context) (Record, error) {
	vals, err := r.client.MGet(ctx, r.key(TokenKey), r.key(UserKey)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	var rec Record
	if len(vals) == 2 {
		rec.Token, _ = vals[0].(string)
		rec.User, _ = vals[1].(string)
	}
	return rec, nil
}

func (r *RedisStorage) Save(ctx context.Context, rec Record) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(TokenKey), rec.Token, 0)
		pipe.Set(ctx, r.key(UserKey), rec.User, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key(TokenKey), r.key(UserKey)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
