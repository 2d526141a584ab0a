package epoch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares per-host epochs across processes and survives restarts.
// Optionally, a TTL is applied to epoch keys to prevent unbounded growth. An expired
// key reads as epoch 0, which can only re-validate snapshots written at epoch 0.
type Redis struct {
	rdb redis.UniversalClient
	ns  string        // logical namespace; should match snapshot Options.Namespace
	ttl time.Duration // 0 disables expiry
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed epoch store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "epoch:" + s.ns + ":" + k }

func (s *Redis) Current(ctx context.Context, hostKey string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(hostKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis epoch parse: %w", err)
	}
	return u, nil
}

// Advance increments the epoch and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip.
func (s *Redis) Advance(ctx context.Context, hostKey string) (uint64, error) {
	k := s.key(hostKey)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Prune is not applicable (Redis handles expiry if TTL is set).
func (s *Redis) Prune(time.Duration) {}

// Close does not close the client; the caller owns it.
func (s *Redis) Close(context.Context) error { return nil }
