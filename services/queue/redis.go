package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/mahudhurio/core"
)

type redisQueue struct {
	client  *redis.Client
	key     string
	maxLen  int64
	timeout time.Duration
	closed  chan struct{}
	once    sync.Once
}

var _ Queue = (*redisQueue)(nil)

// NewRedisQueue keeps notifications in a redis list (LPUSH / BRPOP), so they survive a restart.
func NewRedisQueue(client *redis.Client, key string, maxLen int) Queue {
	return &redisQueue{
		client:  client,
		key:     key,
		maxLen:  int64(maxLen),
		timeout: 2 * time.Second,
		closed:  make(chan struct{}),
	}
}

// NewRedisClient returns nil when addr is empty: redis is optional.
func NewRedisClient(conf core.RedisConfig) *redis.Client {
	if conf.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

func (q *redisQueue) Push(ctx context.Context, n core.Notification) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	if q.maxLen > 0 {
		size, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			return errors.Wrap(err, "reading queue length")
		}
		if size >= q.maxLen {
			return ErrFull
		}
	}
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encoding notification")
	}
	if err = q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return errors.Wrap(err, "pushing notification")
	}
	return nil
}

func (q *redisQueue) Pop(ctx context.Context) (core.Notification, error) {
	for {
		select {
		case <-q.closed:
			return core.Notification{}, ErrClosed
		case <-ctx.Done():
			return core.Notification{}, ctx.Err()
		default:
		}

		res, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
		if err == redis.Nil {
			continue // timed out, check for shutdown and wait again
		}
		if err != nil {
			if ctx.Err() != nil {
				return core.Notification{}, ctx.Err()
			}
			return core.Notification{}, errors.Wrap(err, "popping notification")
		}

		var n core.Notification
		if err = json.Unmarshal([]byte(res[1]), &n); err != nil {
			return core.Notification{}, errors.Wrap(err, "decoding notification")
		}
		return n, nil
	}
}

func (q *redisQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
