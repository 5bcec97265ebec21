package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	heldCountKeyPrefix   = "held_carts:count:"
	heldVersionKeyPrefix = "held_carts:version:"
)

type RedisHeldCountCache struct {
	client *redis.Client
}

func NewRedisHeldCountCache(addr string, password string, db int) *RedisHeldCountCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisHeldCountCache{client: client}
}

func (c *RedisHeldCountCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisHeldCountCache) Close() error {
	return c.client.Close()
}

func (c *RedisHeldCountCache) Get(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	val, err := c.client.Get(ctx, heldCountKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *RedisHeldCountCache) Version(ctx context.Context, userID uuid.UUID) (int64, error) {
	version, err := c.client.Get(ctx, heldVersionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// SetIfVersion watches the version key so an Invalidate racing the write
// aborts the transaction instead of being overwritten.
func (c *RedisHeldCountCache) SetIfVersion(ctx context.Context, userID uuid.UUID, version int64, count int64, ttl time.Duration) error {
	versionKey := heldVersionKey(userID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, heldCountKey(userID), count, ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisHeldCountCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, heldVersionKey(userID))
		pipe.Del(ctx, heldCountKey(userID))
		return nil
	})
	return err
}

func heldCountKey(userID uuid.UUID) string {
	return heldCountKeyPrefix + userID.String()
}

func heldVersionKey(userID uuid.UUID) string {
	return heldVersionKeyPrefix + userID.String()
}
