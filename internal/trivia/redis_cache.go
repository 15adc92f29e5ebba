package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/redis/go-redis/v9"
)

var ErrCacheEmpty = errors.New("question cache is empty")

// RedisCache keeps a bounded list of recently fetched upstream questions so a
// failing upstream can still serve real questions across server instances.
type RedisCache struct {
	rdb  *redis.Client
	size int64
}

func NewRedisCache(rdb *redis.Client, size int) *RedisCache {
	if size <= 0 {
		size = 200
	}
	return &RedisCache{rdb: rdb, size: int64(size)}
}

func (c *RedisCache) key() string {
	return "trivia:questions"
}

func (c *RedisCache) Remember(ctx context.Context, q Question) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, c.key(), b)
		p.LTrim(ctx, c.key(), 0, c.size-1)
		return nil
	})
	return err
}

func (c *RedisCache) Random(ctx context.Context) (Question, error) {
	n, err := c.rdb.LLen(ctx, c.key()).Result()
	if err != nil {
		return Question{}, err
	}
	if n == 0 {
		return Question{}, ErrCacheEmpty
	}

	val, err := c.rdb.LIndex(ctx, c.key(), rand.Int64N(n)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Question{}, ErrCacheEmpty
	}
	if err != nil {
		return Question{}, err
	}

	var q Question
	if err := json.Unmarshal(val, &q); err != nil {
		return Question{}, fmt.Errorf("question cache: %w", ErrMalformedQuestion)
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	q.AllAnswers = shuffled(q.AllAnswers)
	return q, nil
}
