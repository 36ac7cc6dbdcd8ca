package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/globaltime"
)

const (
	DefaultMaxRetries = 3
	DefaultCountdown  = 60 * time.Second
	DefaultTimeLimit  = 300 * time.Second
	defaultPollWait   = 2 * time.Second
)

// Handler runs one task. The returned value is stored as the task result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// TaskOptions controls retries and the execution time limit for a task.
type TaskOptions struct {
	MaxRetries int
	Countdown  time.Duration
	TimeLimit  time.Duration
}

func (o TaskOptions) withDefaults() TaskOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Countdown <= 0 {
		o.Countdown = DefaultCountdown
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = DefaultTimeLimit
	}
	return o
}

type WorkerOptions struct {
	Concurrency int
	PollWait    time.Duration
	Defaults    TaskOptions
}

type registration struct {
	handler Handler
	opts    TaskOptions
}

// Worker pulls tasks from a Queue and runs registered handlers.
type Worker struct {
	queue    Queue
	opts     WorkerOptions
	logger   zerolog.Logger
	mu       sync.RWMutex
	handlers map[string]registration
}

func NewWorker(queue Queue, opts WorkerOptions, logger zerolog.Logger) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollWait <= 0 {
		opts.PollWait = defaultPollWait
	}
	opts.Defaults = opts.Defaults.withDefaults()
	return &Worker{
		queue:    queue,
		opts:     opts,
		logger:   logger.With().Str("component", "worker").Logger(),
		handlers: make(map[string]registration),
	}
}

// Register binds handler to name. A nil opts uses the worker defaults.
func (w *Worker) Register(name string, handler Handler, opts *TaskOptions) {
	reg := registration{handler: handler, opts: w.opts.Defaults}
	if opts != nil {
		reg.opts = opts.withDefaults()
	}
	w.mu.Lock()
	w.handlers[name] = reg
	w.mu.Unlock()
}

// Run consumes tasks with Concurrency goroutines until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.queue == nil {
		return fmt.Errorf("worker is not initialized")
	}

	w.logger.Info().Int("concurrency", w.opts.Concurrency).Msg("worker started")

	var wg sync.WaitGroup
	errCh := make(chan error, w.opts.Concurrency)
	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			if err := w.loop(ctx, slot); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	w.logger.Info().Msg("worker stopped")
	return <-errCh
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	logger := w.logger.With().Int("slot", slot).Logger()
	for {
		if ctx.Err() != nil {
			return nil
		}
		task, err := w.queue.Pop(ctx, w.opts.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errQueueClosed) {
				return err
			}
			logger.Error().Err(err).Msg("pop task failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.PollWait):
			}
			continue
		}
		if task == nil {
			continue
		}
		w.Execute(ctx, *task)
	}
}

// Execute runs one task to completion, recording status and scheduling a retry
// when the handler fails with a non permanent error and retries remain.
func (w *Worker) Execute(ctx context.Context, task Task) {
	logger := w.logger.With().
		Str("task", task.Name).
		Str("task_id", task.ID).
		Int("attempt", task.Attempt).
		Logger()

	w.mu.RLock()
	reg, ok := w.handlers[task.Name]
	w.mu.RUnlock()
	if !ok {
		logger.Error().Msg("unknown task")
		w.setStatus(ctx, task, StateFailed, nil, ErrUnknownTask)
		return
	}

	w.setStatus(ctx, task, StateRunning, nil, nil)
	started := globaltime.Now()

	result, err := w.invoke(ctx, reg, task)
	if err == nil {
		logger.Info().Dur("elapsed", globaltime.Since(started)).Msg("task succeeded")
		w.setStatus(ctx, task, StateSucceeded, result, nil)
		return
	}

	if IsPermanent(err) || task.Attempt >= reg.opts.MaxRetries {
		logger.Error().Err(err).Dur("elapsed", globaltime.Since(started)).Msg("task failed")
		w.setStatus(ctx, task, StateFailed, nil, err)
		return
	}

	retry := task
	retry.Attempt++
	if pushErr := w.queue.Push(ctx, retry, reg.opts.Countdown); pushErr != nil {
		logger.Error().Err(pushErr).AnErr("cause", err).Msg("task retry could not be scheduled")
		w.setStatus(ctx, task, StateFailed, nil, err)
		return
	}
	logger.Warn().
		Err(err).
		Dur("countdown", reg.opts.Countdown).
		Int("next_attempt", retry.Attempt).
		Msg("task failed, retry scheduled")
	w.setStatus(ctx, retry, StateRetrying, nil, err)
}

func (w *Worker) invoke(ctx context.Context, reg registration, task Task) (result any, err error) {
	runCtx, cancel := context.WithTimeout(ctx, reg.opts.TimeLimit)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	result, err = reg.handler(runCtx, task.Args)
	if err == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("task %s exceeded time limit of %s", task.Name, reg.opts.TimeLimit)
	}
	return result, err
}

func (w *Worker) setStatus(ctx context.Context, task Task, state State, result any, cause error) {
	status := Status{
		ID:        task.ID,
		Name:      task.Name,
		State:     state,
		Attempt:   task.Attempt,
		UpdatedAt: globaltime.UTC(),
	}
	if cause != nil {
		status.Error = cause.Error()
	}
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("task result could not be encoded")
		} else {
			status.Result = encoded
		}
	}
	if err := w.queue.SetStatus(context.WithoutCancel(ctx), status); err != nil {
		w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("task status update failed")
	}
}
