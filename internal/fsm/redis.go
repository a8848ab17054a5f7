package fsm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "fsm:"

// RedisStore keeps conversation state in Redis so flows survive restarts
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings. The caller owns the client.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func decode(raw string) (State, error) {
	var st State
	if err := sonic.UnmarshalString(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode fsm state: %w", err)
	}
	return st, nil
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	raw, err := s.client.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	return decode(raw)
}

func (s *RedisStore) Set(ctx context.Context, userID int64, st State) error {
	if st.Name == StateIdle {
		return s.Clear(ctx, userID)
	}
	raw, err := sonic.MarshalString(st)
	if err != nil {
		return fmt.Errorf("encode fsm state: %w", err)
	}
	return s.client.Set(ctx, key(userID), raw, s.ttl).Err()
}

func (s *RedisStore) Take(ctx context.Context, userID int64) (State, error) {
	raw, err := s.client.GetDel(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	return decode(raw)
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, key(userID)).Err()
}
