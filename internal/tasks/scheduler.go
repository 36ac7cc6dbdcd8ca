package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ScheduleEntry enqueues Task every Interval.
type ScheduleEntry struct {
	Task     string
	Interval time.Duration
	Args     any
}

// Scheduler enqueues periodic tasks. It never runs task bodies itself.
type Scheduler struct {
	client  *Client
	cron    *cron.Cron
	entries []ScheduleEntry
	logger  zerolog.Logger
}

func NewScheduler(client *Client, schedule []ScheduleEntry, logger zerolog.Logger) (*Scheduler, error) {
	if client == nil {
		return nil, fmt.Errorf("task client is required")
	}
	s := &Scheduler{
		client:  client,
		cron:    cron.New(),
		entries: schedule,
		logger:  logger.With().Str("component", "beat").Logger(),
	}

	for _, entry := range schedule {
		if strings.TrimSpace(entry.Task) == "" {
			return nil, fmt.Errorf("schedule entry is missing a task name")
		}
		if entry.Interval < time.Second {
			return nil, fmt.Errorf("schedule interval for %s must be at least 1s", entry.Task)
		}
		id, err := s.cron.AddFunc("@every "+entry.Interval.String(), func() {
			s.fire(context.Background(), entry)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add schedule for %s: %w", entry.Task, err)
		}
		s.logger.Debug().
			Str("task", entry.Task).
			Dur("interval", entry.Interval).
			Int("entry_id", int(id)).
			Msg("schedule registered")
	}
	return s, nil
}

// Entries returns the registered schedule.
func (s *Scheduler) Entries() []ScheduleEntry {
	return append([]ScheduleEntry(nil), s.entries...)
}

func (s *Scheduler) fire(ctx context.Context, entry ScheduleEntry) {
	handle, err := s.client.Enqueue(ctx, entry.Task, entry.Args)
	if err != nil {
		s.logger.Error().Err(err).Str("task", entry.Task).Msg("scheduled enqueue failed")
		return
	}
	s.logger.Info().Str("task", entry.Task).Str("task_id", handle.ID).Msg("scheduled task enqueued")
}

// Run starts the schedule and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info().Int("entries", len(s.entries)).Msg("beat started")

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("beat stop timed out waiting for running jobs")
	}
	s.logger.Info().Msg("beat stopped")
	return nil
}
