package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/cli"
	"horse.fit/newsroom/internal/config"
	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/enrich"
	"horse.fit/newsroom/internal/ingest"
	"horse.fit/newsroom/internal/logging"
	"horse.fit/newsroom/internal/newsapi"
	"horse.fit/newsroom/internal/reader"
	"horse.fit/newsroom/internal/tasks"
	"horse.fit/newsroom/internal/textproc"
)

// loadRuntime reads the env file, configuration and logger shared by every command.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

type pipeline struct {
	ingest *ingest.Service
	enrich *enrich.Service
}

func newPipeline(cfg *config.Config, repo db.Repository, logger zerolog.Logger) (*pipeline, error) {
	stopwords, err := textproc.NewStopwordSet(cfg.TextLanguage)
	if err != nil {
		return nil, fmt.Errorf("TEXT_LANGUAGE: %w", err)
	}

	feed := newsapi.NewClient(newsapi.Options{
		BaseURL:  cfg.NewsAPIBaseURL,
		APIKey:   cfg.NewsAPIKey,
		Country:  cfg.NewsAPICountry,
		PageSize: cfg.NewsAPIPageSize,
		Timeout:  cfg.NewsAPITimeout,
	}, logger)

	ingestOpts := ingest.Options{
		Categories: cfg.Categories(),
		FullText:   cfg.FetchFullText,
	}
	if cfg.FetchFullText {
		ingestOpts.Fetcher = reader.NewFetcher(reader.Options{})
	}

	summarizer := textproc.NewSummarizer(stopwords, textproc.WithSummarizerLogger(logger))
	keywords := textproc.NewKeywordExtractor(stopwords, logger)

	return &pipeline{
		ingest: ingest.NewService(repo, feed, ingestOpts, logger),
		enrich: enrich.NewService(repo, summarizer, keywords, textproc.NewLanguageDetector(), enrich.Options{
			BatchSize:        cfg.EnrichBatchSize,
			SummarySentences: cfg.SummarySentences,
			MaxKeywords:      cfg.MaxKeywords,
		}, logger),
	}, nil
}

func openQueue(ctx context.Context, cfg *config.Config) (*tasks.RedisQueue, error) {
	queue, err := tasks.NewRedisQueue(ctx, cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to task queue: %w", err)
	}
	return queue, nil
}

func taskOptions(cfg *config.Config) tasks.TaskOptions {
	return tasks.TaskOptions{
		MaxRetries: cfg.TaskMaxRetries,
		Countdown:  cfg.TaskRetryCountdown,
		TimeLimit:  cfg.TaskTimeLimit,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
