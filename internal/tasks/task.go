package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/newsroom/internal/globaltime"
)

const (
	FetchNews          = "fetch_news"
	ProcessNewArticles = "process_new_articles"
	ProcessArticle     = "process_article"
)

var (
	ErrUnknownTask  = errors.New("unknown task")
	ErrTaskNotFound = errors.New("task not found")

	errQueueClosed = errors.New("task queue is closed")
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Task is one queued unit of work. Attempt counts retries already scheduled.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Status is the last known state of a task.
type Status struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	State     State           `json:"state"`
	Attempt   int             `json:"attempt"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Queue is the broker and result backend shared by producers and workers.
type Queue interface {
	// Push makes task available after delay.
	Push(ctx context.Context, task Task, delay time.Duration) error
	// Pop waits up to wait for a ready task. It returns nil, nil when none arrived.
	Pop(ctx context.Context, wait time.Duration) (*Task, error)
	SetStatus(ctx context.Context, status Status) error
	Status(ctx context.Context, id string) (*Status, error)
	Close() error
}

// ArticleArgs are the arguments of ProcessArticle.
type ArticleArgs struct {
	ArticleID int64 `json:"article_id"`
}

// Known reports whether name is one of the registered task names.
func Known(name string) bool {
	switch name {
	case FetchNews, ProcessNewArticles, ProcessArticle:
		return true
	default:
		return false
	}
}

// Handle identifies an enqueued task.
type Handle struct {
	ID   string `json:"task_id"`
	Name string `json:"task"`
}

// Client enqueues tasks and reads their status.
type Client struct {
	queue Queue
}

func NewClient(queue Queue) *Client {
	return &Client{queue: queue}
}

func (c *Client) Enqueue(ctx context.Context, name string, args any) (Handle, error) {
	return c.EnqueueIn(ctx, name, args, 0)
}

// EnqueueIn schedules a task to become runnable after delay.
func (c *Client) EnqueueIn(ctx context.Context, name string, args any, delay time.Duration) (Handle, error) {
	if c == nil || c.queue == nil {
		return Handle{}, fmt.Errorf("task client is not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Handle{}, fmt.Errorf("task name is required")
	}

	var raw json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return Handle{}, fmt.Errorf("encode %s args: %w", name, err)
		}
		raw = encoded
	}

	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		Args:       raw,
		EnqueuedAt: globaltime.UTC(),
	}
	if err := c.queue.SetStatus(ctx, Status{ID: task.ID, Name: name, State: StatePending, UpdatedAt: task.EnqueuedAt}); err != nil {
		return Handle{}, fmt.Errorf("record %s status: %w", name, err)
	}
	if err := c.queue.Push(ctx, task, delay); err != nil {
		return Handle{}, fmt.Errorf("enqueue %s: %w", name, err)
	}
	return Handle{ID: task.ID, Name: name}, nil
}

func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	if c == nil || c.queue == nil {
		return nil, fmt.Errorf("task client is not initialized")
	}
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, ErrTaskNotFound
	}
	return c.queue.Status(ctx, strings.TrimSpace(id))
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var target *permanentError
	return errors.As(err, &target)
}
