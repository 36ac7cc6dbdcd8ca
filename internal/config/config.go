package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	RedisURL  string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	QueueName string `envconfig:"QUEUE_NAME" default:"newsroom"`

	NewsAPIKey      string        `envconfig:"NEWS_API_KEY" default:""`
	NewsAPIBaseURL  string        `envconfig:"NEWS_API_BASE_URL" default:"https://newsapi.org/v2"`
	NewsAPICountry  string        `envconfig:"NEWS_API_COUNTRY" default:"us"`
	NewsAPIPageSize int           `envconfig:"NEWS_API_PAGE_SIZE" default:"20"`
	NewsAPITimeout  time.Duration `envconfig:"NEWS_API_TIMEOUT" default:"15s"`

	FetchCategories string `envconfig:"FETCH_CATEGORIES" default:"business,technology,science,health,general"`
	FetchFullText   bool   `envconfig:"FETCH_FULL_TEXT" default:"false"`

	EnrichBatchSize  int    `envconfig:"ENRICH_BATCH_SIZE" default:"50"`
	SummarySentences int    `envconfig:"SUMMARY_SENTENCES" default:"3"`
	MaxKeywords      int    `envconfig:"MAX_KEYWORDS" default:"5"`
	TextLanguage     string `envconfig:"TEXT_LANGUAGE" default:"en"`

	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"2"`
	TaskTimeLimit      time.Duration `envconfig:"TASK_TIME_LIMIT" default:"300s"`
	TaskMaxRetries     int           `envconfig:"TASK_MAX_RETRIES" default:"3"`
	TaskRetryCountdown time.Duration `envconfig:"TASK_RETRY_COUNTDOWN" default:"60s"`
	FetchInterval      time.Duration `envconfig:"FETCH_INTERVAL" default:"600s"`
	ProcessInterval    time.Duration `envconfig:"PROCESS_INTERVAL" default:"600s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(c.NewsAPIBaseURL)); err != nil {
		return fmt.Errorf("NEWS_API_BASE_URL is not a valid URL: %w", err)
	}
	if c.NewsAPIPageSize < 1 || c.NewsAPIPageSize > 100 {
		return fmt.Errorf("NEWS_API_PAGE_SIZE must be between 1 and 100")
	}
	if len(c.Categories()) == 0 {
		return fmt.Errorf("FETCH_CATEGORIES must name at least one category")
	}
	if c.EnrichBatchSize < 1 {
		return fmt.Errorf("ENRICH_BATCH_SIZE must be >= 1")
	}
	if c.SummarySentences < 1 {
		return fmt.Errorf("SUMMARY_SENTENCES must be >= 1")
	}
	if c.MaxKeywords < 1 {
		return fmt.Errorf("MAX_KEYWORDS must be >= 1")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1")
	}
	if c.TaskTimeLimit <= 0 {
		return fmt.Errorf("TASK_TIME_LIMIT must be > 0")
	}
	if c.TaskMaxRetries < 0 {
		return fmt.Errorf("TASK_MAX_RETRIES must be >= 0")
	}
	if c.TaskRetryCountdown < 0 {
		return fmt.Errorf("TASK_RETRY_COUNTDOWN must be >= 0")
	}
	if c.FetchInterval < time.Second || c.ProcessInterval < time.Second {
		return fmt.Errorf("FETCH_INTERVAL and PROCESS_INTERVAL must be at least 1s")
	}
	return nil
}

// Categories returns the configured feed categories, lower-cased and de-duplicated in order.
func (c *Config) Categories() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.FetchCategories, ",")
	categories := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		category := strings.ToLower(strings.TrimSpace(part))
		if category == "" {
			continue
		}
		if _, exists := seen[category]; exists {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories
}
