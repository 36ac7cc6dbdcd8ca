package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/db"
)

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "process does not accept positional arguments")
		return 2
	}

	ctx, cancel, p, closeFn, code := openPipeline(envLoader, *timeout, false)
	if code != 0 {
		return code
	}
	defer cancel()
	defer closeFn()

	res, err := p.enrich.ProcessBatch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		return 1
	}
	if err := printJSON(res); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func runProcessArticle(args []string) int {
	fs := flag.NewFlagSet("process-article", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: newsroom process-article [flags] <article-id>")
		return 2
	}
	id, err := strconv.ParseInt(strings.TrimSpace(fs.Arg(0)), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(os.Stderr, "article-id must be a positive integer")
		return 2
	}

	ctx, cancel, p, closeFn, code := openPipeline(envLoader, *timeout, false)
	if code != 0 {
		return code
	}
	defer cancel()
	defer closeFn()

	res, err := p.enrich.ProcessArticle(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		return 1
	}
	if err := printJSON(res); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

// openPipeline connects to the database and builds the pipeline. With dryRun the
// pipeline runs against an in-memory store and nothing is persisted. A non-zero
// code means the command should exit with it.
func openPipeline(envLoader *cli.EnvLoader, timeout time.Duration, dryRun bool) (context.Context, context.CancelFunc, *pipeline, func(), int) {
	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, nil, nil, 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if dryRun {
		p, err := newPipeline(cfg, db.NewMemoryStore(), logger)
		if err != nil {
			cancel()
			fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
			return nil, nil, nil, nil, 1
		}
		logger.Info().Msg("dry run, results are not persisted")
		return ctx, cancel, p, func() {}, 0
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		logger.Error().Err(err).Msg("failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, nil, nil, nil, 1
	}

	p, err := newPipeline(cfg, db.NewStore(pool), logger)
	if err != nil {
		cancel()
		_ = pool.Close()
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return nil, nil, nil, nil, 1
	}
	return ctx, cancel, p, func() { _ = pool.Close() }, 0
}
