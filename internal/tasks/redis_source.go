package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPopTimeout bounds one blocking pop so the loop can observe
// context cancellation between polls.
const DefaultPopTimeout = 5 * time.Second

// RedisSource consumes order ids from a Redis list. The upstream
// order-management process pushes ids with LPUSH; the scanner pops them with
// BRPOP, so ids are delivered in push order.
type RedisSource struct {
	client     *redis.Client
	queueKey   string
	popTimeout time.Duration
}

// RedisSourceOptions contains configuration for creating a RedisSource.
type RedisSourceOptions struct {
	URL        string
	QueueKey   string
	PopTimeout time.Duration
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, opts RedisSourceOptions) (*RedisSource, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	popTimeout := opts.PopTimeout
	if popTimeout == 0 {
		popTimeout = DefaultPopTimeout
	}

	return &RedisSource{
		client:     client,
		queueKey:   opts.QueueKey,
		popTimeout: popTimeout,
	}, nil
}

// Next blocks until an order id is available or the context is done.
func (s *RedisSource) Next(ctx context.Context) (string, error) {
	for {
		vals, err := s.client.BRPop(ctx, s.popTimeout, s.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Pop timed out with an empty queue; poll again.
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			return "", fmt.Errorf("brpop %s: %w", s.queueKey, err)
		}
		// BRPOP returns [key, value].
		if len(vals) != 2 {
			return "", fmt.Errorf("brpop %s: unexpected reply %v", s.queueKey, vals)
		}
		return vals[1], nil
	}
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

// Verify interface compliance at compile time.
var _ Source = (*RedisSource)(nil)
