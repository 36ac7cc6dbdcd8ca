package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/tasks"
)

func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	concurrency := fs.Int("concurrency", 0, "Concurrent tasks (default WORKER_CONCURRENCY)")
	pollWait := fs.Duration("poll-wait", 2*time.Second, "How long one queue poll blocks")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *concurrency < 0 {
		fmt.Fprintln(os.Stderr, "--concurrency must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *concurrency == 0 {
		*concurrency = cfg.WorkerConcurrency
	}

	ctx, cancel := signalContext()
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	pool, err := db.NewPool(connectCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	queue, err := openQueue(connectCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to connect to queue")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer queue.Close()

	p, err := newPipeline(cfg, db.NewStore(pool), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}

	opts := taskOptions(cfg)
	worker := tasks.NewWorker(queue, tasks.WorkerOptions{
		Concurrency: *concurrency,
		PollWait:    *pollWait,
		Defaults:    opts,
	}, logger)
	registerHandlers(worker, p.ingest, p.enrich, opts)

	if err := worker.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
		fmt.Fprintf(os.Stderr, "Worker failed: %v\n", err)
		return 1
	}
	return 0
}
