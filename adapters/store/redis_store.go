package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/agentgate/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the NonceStore interface,
// shared by every instance of a multi-instance deployment
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client *redis.Client, ttl time.Duration) ports.NonceStore {
	return &RedisStore{
		client: client,
		prefix: "agentgate:nonce:",
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue stores a fresh nonce with the store TTL
func (s *RedisStore) Issue(ctx context.Context) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	createdAt := strconv.FormatInt(s.now().UnixMilli(), 10)
	ok, err := s.client.SetNX(ctx, s.prefix+nonce, createdAt, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("nonce collision")
	}

	return nonce, nil
}

// Consume atomically deletes the nonce and reports whether it was still valid
func (s *RedisStore) Consume(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	val, err := s.client.GetDel(ctx, s.prefix+nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	// Keys normally expire through their TTL before this check matters
	createdMillis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, nil
	}
	age := s.now().Sub(time.UnixMilli(createdMillis))
	return age <= s.ttl, nil
}
