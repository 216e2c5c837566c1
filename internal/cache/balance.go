// Package cache holds read-through caches in front of the database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned by Get when the key is absent.
	ErrMiss = errors.New("cache miss")
	// ErrSuperseded is returned by SetAt when an invalidation happened after the generation was read.
	ErrSuperseded = errors.New("cache write superseded by invalidation")
)

// BalanceCache is read-through. A reader takes Generation before loading the balance and
// stores it with SetAt, so a value loaded before a concurrent Invalidate is never cached.
type BalanceCache interface {
	Get(ctx context.Context, userID uuid.UUID) (int64, error)
	Generation(ctx context.Context, userID uuid.UUID) (int64, error)
	SetAt(ctx context.Context, userID uuid.UUID, gen, balance int64) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

const generationTTL = 24 * time.Hour

type RedisBalance struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBalance(rdb *redis.Client, ttl time.Duration) *RedisBalance {
	return &RedisBalance{rdb: rdb, ttl: ttl}
}

func balanceKey(userID uuid.UUID) string {
	return fmt.Sprintf("wallet:balance:%s", userID)
}

func generationKey(userID uuid.UUID) string {
	return balanceKey(userID) + ":gen"
}

func (c *RedisBalance) Get(ctx context.Context, userID uuid.UUID) (int64, error) {
	v, err := c.rdb.Get(ctx, balanceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis get: corrupt balance %q: %w", v, err)
	}
	return n, nil
}

func (c *RedisBalance) Generation(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// SetAt writes under WATCH on the generation key; an Invalidate in between aborts the write.
func (c *RedisBalance) SetAt(ctx context.Context, userID uuid.UUID, gen, balance int64) error {
	gkey := generationKey(userID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return ErrSuperseded
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, balanceKey(userID), balance, c.ttl)
			return nil
		})
		return err
	}, gkey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSuperseded), errors.Is(err, redis.TxFailedErr):
		return ErrSuperseded
	}
	return fmt.Errorf("redis set: %w", err)
}

func (c *RedisBalance) Invalidate(ctx context.Context, userID uuid.UUID) error {
	gkey := generationKey(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gkey)
		pipe.Expire(ctx, gkey, generationTTL)
		pipe.Del(ctx, balanceKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// NewRedisClient dials addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
