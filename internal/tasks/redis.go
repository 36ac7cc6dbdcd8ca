package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/newsroom/internal/globaltime"
)

const (
	defaultStatusTTL = 24 * time.Hour
	promoteBatch     = 100
)

// RedisQueue keeps ready tasks in a list, delayed tasks in a sorted set scored
// by due time in milliseconds, and task status as JSON strings with a TTL.
type RedisQueue struct {
	client    *redis.Client
	prefix    string
	statusTTL time.Duration
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to redisURL and verifies connectivity.
func NewRedisQueue(ctx context.Context, redisURL, name string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisQueueWithClient(client, name), nil
}

// NewRedisQueueWithClient wraps an existing client. name namespaces every key.
func NewRedisQueueWithClient(client *redis.Client, name string) *RedisQueue {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "newsroom"
	}
	return &RedisQueue{client: client, prefix: name, statusTTL: defaultStatusTTL}
}

func (q *RedisQueue) readyKey() string   { return q.prefix + ":ready" }
func (q *RedisQueue) delayedKey() string { return q.prefix + ":delayed" }
func (q *RedisQueue) statusKey(id string) string {
	return q.prefix + ":status:" + id
}

func (q *RedisQueue) Push(ctx context.Context, task Task, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if delay <= 0 {
		return q.client.LPush(ctx, q.readyKey(), payload).Err()
	}
	due := globaltime.Now().Add(delay).UnixMilli()
	return q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due), Member: string(payload)}).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) (*Task, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	if wait < time.Second {
		wait = time.Second
	}

	res, err := q.client.BRPop(ctx, wait, q.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop task: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("pop task: unexpected reply %v", res)
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// promoteDue moves due delayed tasks onto the ready list. Only the caller whose
// ZREM succeeds pushes a member, so concurrent workers never duplicate a task.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(globaltime.Now().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return fmt.Errorf("claim due task: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey(), member).Err(); err != nil {
			return fmt.Errorf("promote due task: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) SetStatus(ctx context.Context, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return q.client.Set(ctx, q.statusKey(status.ID), payload, q.statusTTL).Err()
}

func (q *RedisQueue) Status(ctx context.Context, id string) (*Status, error) {
	payload, err := q.client.Get(ctx, q.statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Depth reports ready and delayed task counts.
func (q *RedisQueue) Depth(ctx context.Context) (ready int64, delayed int64, err error) {
	ready, err = q.client.LLen(ctx, q.readyKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	delayed, err = q.client.ZCard(ctx, q.delayedKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	return ready, delayed, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
