// Package cache memoises structural verdicts in Redis so repeated references across runs
// skip decoding and scanning.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/fumen-sieve/internal/sieve"
)

const ttlVerdict = 24 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb, ttl: ttlVerdict} }

// Dial connects to redisURL and pings it.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for verdict cache")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Store) key(groups, data string) string {
	return "sieve:verdict:" + groups + ":" + strings.TrimSpace(data)
}

// Get returns the cached outcome for fumen data under the given group key.
func (s *Store) Get(ctx context.Context, groups, data string) (sieve.Outcome, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(groups, data)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	switch o := sieve.Outcome(raw); o {
	case sieve.Accepted, sieve.RejectedGap, sieve.RejectedBefore, sieve.RejectedAfter:
		return o, true, nil
	}
	// unknown payload: treat as a miss so the record is re-evaluated
	return "", false, nil
}

func (s *Store) Put(ctx context.Context, groups, data string, o sieve.Outcome) error {
	return s.rdb.Set(ctx, s.key(groups, data), string(o), s.ttl).Err()
}
