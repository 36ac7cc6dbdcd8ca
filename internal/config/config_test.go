package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:        "local",
		LogLevel:           "info",
		DatabaseURL:        "postgres://localhost/newsroom",
		DBMinConns:         1,
		DBMaxConns:         8,
		NewsAPIBaseURL:     "https://newsapi.org/v2",
		NewsAPIPageSize:    20,
		FetchCategories:    "business,technology",
		EnrichBatchSize:    50,
		SummarySentences:   3,
		MaxKeywords:        5,
		WorkerConcurrency:  2,
		TaskTimeLimit:      300 * time.Second,
		TaskMaxRetries:     3,
		TaskRetryCountdown: 60 * time.Second,
		FetchInterval:      600 * time.Second,
		ProcessInterval:    600 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "database url", mutate: func(c *Config) { c.DatabaseURL = "  " }, want: "DATABASE_URL"},
		{name: "conn bounds", mutate: func(c *Config) { c.DBMinConns = 9 }, want: "cannot exceed"},
		{name: "page size", mutate: func(c *Config) { c.NewsAPIPageSize = 0 }, want: "NEWS_API_PAGE_SIZE"},
		{name: "categories", mutate: func(c *Config) { c.FetchCategories = " , " }, want: "FETCH_CATEGORIES"},
		{name: "batch size", mutate: func(c *Config) { c.EnrichBatchSize = 0 }, want: "ENRICH_BATCH_SIZE"},
		{name: "time limit", mutate: func(c *Config) { c.TaskTimeLimit = 0 }, want: "TASK_TIME_LIMIT"},
		{name: "interval", mutate: func(c *Config) { c.FetchInterval = time.Millisecond }, want: "FETCH_INTERVAL"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error: got %q want substring %q", err.Error(), tc.want)
			}
		})
	}
}

func TestCategoriesNormalizesAndDeduplicates(t *testing.T) {
	t.Parallel()

	cfg := Config{FetchCategories: " Business, technology,,business ,SCIENCE"}
	got := strings.Join(cfg.Categories(), ",")
	if got != "business,technology,science" {
		t.Fatalf("unexpected categories: %q", got)
	}
}
