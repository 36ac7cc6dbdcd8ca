package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/tasks"
)

func runEnqueue(args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	articleID := fs.Int64("article-id", 0, "Article id for process_article")
	delay := fs.Duration("delay", 0, "Delay before the task becomes runnable")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: newsroom enqueue [flags] <fetch_news|process_new_articles|process_article>")
		return 2
	}

	name := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	if !tasks.Known(name) {
		fmt.Fprintf(os.Stderr, "unknown task: %s\n", name)
		return 2
	}
	var taskArgs any
	if name == tasks.ProcessArticle {
		if *articleID <= 0 {
			fmt.Fprintln(os.Stderr, "--article-id must be a positive integer for process_article")
			return 2
		}
		taskArgs = tasks.ArticleArgs{ArticleID: *articleID}
	}
	if *delay < 0 {
		fmt.Fprintln(os.Stderr, "--delay must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer queue.Close()

	handle, err := tasks.NewClient(queue).EnqueueIn(ctx, name, taskArgs, *delay)
	if err != nil {
		logger.Error().Err(err).Str("task", name).Msg("enqueue failed")
		fmt.Fprintf(os.Stderr, "Enqueue failed: %v\n", err)
		return 1
	}

	logger.Info().Str("task", name).Str("task_id", handle.ID).Msg("task enqueued")
	if err := printJSON(handle); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: newsroom status [flags] <task-id>")
		return 2
	}

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer queue.Close()

	status, err := tasks.NewClient(queue).Status(ctx, fs.Arg(0))
	if errors.Is(err, tasks.ErrTaskNotFound) {
		fmt.Fprintf(os.Stderr, "task %s not found\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read task status: %v\n", err)
		return 1
	}
	if err := printJSON(status); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}
