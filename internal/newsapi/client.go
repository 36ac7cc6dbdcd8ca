package newsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL  = "https://newsapi.org/v2"
	DefaultCountry  = "us"
	DefaultPageSize = 20
	DefaultTimeout  = 30 * time.Second
	DefaultCategory = "general"
	UnknownSource   = "Unknown"

	maxBodyBytes     = 4 * 1024 * 1024
	defaultUserAgent = "newsroom/1.0 (+https://horse.fit/newsroom)"
)

// Options configures the feed client.
type Options struct {
	BaseURL    string
	APIKey     string
	Country    string
	PageSize   int
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Article is one feed entry mapped onto the local article shape.
type Article struct {
	Title       string
	Content     string
	Description string
	Source      string
	Category    string
	URL         string
	ImageURL    *string
	Author      *string
	PublishedAt *time.Time
}

// Query selects articles from the free-text endpoint.
type Query struct {
	Q        string
	From     *time.Time
	To       *time.Time
	SortBy   string
	Language string
	PageSize int
}

// Client talks to a NewsAPI-compatible feed. Failures are logged and yield no articles.
type Client struct {
	opts   Options
	http   *http.Client
	logger zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.Country) == "" {
		opts.Country = DefaultCountry
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		opts:   opts,
		http:   client,
		logger: logger.With().Str("component", "newsapi").Logger(),
	}
}

// TopHeadlines returns current headlines for category. An empty category means all categories.
func (c *Client) TopHeadlines(ctx context.Context, category string) []Article {
	category = strings.ToLower(strings.TrimSpace(category))

	params := url.Values{}
	params.Set("country", c.opts.Country)
	params.Set("pageSize", strconv.Itoa(c.opts.PageSize))
	if category != "" {
		params.Set("category", category)
	}

	env, err := c.get(ctx, "top-headlines", params)
	if err != nil {
		c.logger.Error().Err(err).Str("category", category).Msg("fetch top headlines failed")
		return nil
	}
	return transformArticles(env.Articles, category)
}

// Everything searches all indexed articles for q.
func (c *Client) Everything(ctx context.Context, q Query) []Article {
	query := strings.TrimSpace(q.Q)
	if query == "" {
		c.logger.Warn().Msg("search query is empty")
		return nil
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = c.opts.PageSize
	}
	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = "publishedAt"
	}
	language := strings.TrimSpace(q.Language)
	if language == "" {
		language = "en"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("sortBy", sortBy)
	params.Set("language", language)
	if q.From != nil {
		params.Set("from", q.From.UTC().Format(time.DateOnly))
	}
	if q.To != nil {
		params.Set("to", q.To.UTC().Format(time.DateOnly))
	}

	env, err := c.get(ctx, "everything", params)
	if err != nil {
		c.logger.Error().Err(err).Str("query", query).Msg("search news failed")
		return nil
	}
	return transformArticles(env.Articles, "")
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("news client is not initialized")
	}
	params.Set("apiKey", c.opts.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s status %d: %s", endpoint, resp.StatusCode, errorMessage(body))
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.Status != "ok" {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("feed status %q: %s", env.Status, message)
	}
	return env, nil
}

func errorMessage(body []byte) string {
	if env, err := decodeEnvelope(body); err == nil && strings.TrimSpace(env.Message) != "" {
		return env.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func transformArticles(raw []rawArticle, category string) []Article {
	if category == "" {
		category = DefaultCategory
	}

	out := make([]Article, 0, len(raw))
	for _, item := range raw {
		link := strings.TrimSpace(deref(item.URL))
		title := strings.TrimSpace(deref(item.Title))
		if link == "" || title == "" {
			continue
		}

		source := UnknownSource
		if item.Source != nil && item.Source.Name != nil && strings.TrimSpace(*item.Source.Name) != "" {
			source = strings.TrimSpace(*item.Source.Name)
		}

		description := deref(item.Description)
		content := deref(item.Content)
		if content == "" {
			content = description
		}

		out = append(out, Article{
			Title:       title,
			Content:     content,
			Description: description,
			Source:      source,
			Category:    category,
			URL:         link,
			ImageURL:    nonEmpty(item.URLToImage),
			Author:      nonEmpty(item.Author),
			PublishedAt: ParsePublishedAt(deref(item.PublishedAt)),
		})
	}
	return out
}

// ParsePublishedAt parses an RFC 3339 timestamp into UTC, returning nil when it is absent or malformed.
func ParsePublishedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*p)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
