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
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database and queue ping timeout")
	skipQueue := fs.Bool("skip-queue", false, "Only check the database")

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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	counts, err := db.NewStore(pool).Counts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}

	if !*skipQueue {
		queue, err := openQueue(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("health check failed")
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		defer queue.Close()

		ready, delayed, err := queue.Depth(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("health check failed")
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		fmt.Printf("ok: queue %s ready=%d delayed=%d\n", cfg.QueueName, ready, delayed)
	}

	logger.Info().
		Dur("timeout", *timeout).
		Int64("articles", counts.Articles).
		Int64("unprocessed", counts.Unprocessed).
		Msg("health check passed")
	fmt.Printf("ok: database ping successful (articles=%d processed=%d unprocessed=%d tags=%d)\n",
		counts.Articles, counts.Processed, counts.Unprocessed, counts.Tags)
	return 0
}
