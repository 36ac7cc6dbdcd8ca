package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/config"
	"horse.fit/newsroom/internal/tasks"
)

func runBeat(args []string) int {
	fs := flag.NewFlagSet("beat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	runNow := fs.Bool("now", false, "Enqueue every scheduled task once at startup")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	queue, err := openQueue(connectCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("beat failed to connect to queue")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer queue.Close()

	client := tasks.NewClient(queue)
	schedule := beatSchedule(cfg)
	scheduler, err := tasks.NewScheduler(client, schedule, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid schedule: %v\n", err)
		return 1
	}

	if *runNow {
		for _, entry := range schedule {
			if _, err := client.Enqueue(ctx, entry.Task, entry.Args); err != nil {
				logger.Error().Err(err).Str("task", entry.Task).Msg("startup enqueue failed")
			}
		}
	}

	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Beat failed: %v\n", err)
		return 1
	}
	return 0
}

func beatSchedule(cfg *config.Config) []tasks.ScheduleEntry {
	return []tasks.ScheduleEntry{
		{Task: tasks.FetchNews, Interval: cfg.FetchInterval},
		{Task: tasks.ProcessNewArticles, Interval: cfg.ProcessInterval},
	}
}
