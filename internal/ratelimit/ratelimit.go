// Package ratelimit ограничивает частоту запросов с кодами оплаты,
// чтобы одноразовые коды нельзя было перебирать.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Limiter решает, пропускать ли очередной запрос по ключу
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter счётчик с фиксированным окном в Redis
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "paybook:ratelimit:",
		now:    time.Now,
	}
}

// NewClient создаёт клиент Redis из URL вида redis://host:port/db
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Allow увеличивает счётчик окна и сообщает, уложился ли запрос в лимит
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	return incr.Val() <= l.limit, nil
}

func (l *RedisLimiter) windowKey(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return l.prefix + key + ":" + strconv.FormatInt(bucket, 10)
}

// Nop пропускает всё; используется, когда Redis не настроен
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }
