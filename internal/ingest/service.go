package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/newsapi"
	"horse.fit/newsroom/internal/reader"
)

// Column widths of the articles table.
const (
	maxTitleChars    = 500
	maxSourceChars   = 200
	maxCategoryChars = 100
	maxURLChars      = 1000
	maxAuthorChars   = 300
)

var DefaultCategories = []string{"business", "technology", "science", "health", "general"}

// FeedSource lists current headlines for a category. Feed failures yield an empty slice.
type FeedSource interface {
	TopHeadlines(ctx context.Context, category string) []newsapi.Article
}

// TextFetcher retrieves the full readable text of an article page.
type TextFetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

type Options struct {
	Categories []string
	// FullText replaces truncated feed content with the extracted page text when Fetcher is set.
	FullText bool
	Fetcher  TextFetcher
}

type CategoryResult struct {
	Category string `json:"category"`
	Fetched  int    `json:"fetched"`
	New      int    `json:"new"`
	Skipped  int    `json:"skipped"`
}

type FetchResult struct {
	Categories []CategoryResult `json:"categories"`
	New        int              `json:"new"`
	Skipped    int              `json:"skipped"`
}

type Service struct {
	repo   db.Repository
	feed   FeedSource
	dedup  Deduplicator
	opts   Options
	logger zerolog.Logger
}

func NewService(repo db.Repository, feed FeedSource, opts Options, logger zerolog.Logger) *Service {
	if len(opts.Categories) == 0 {
		opts.Categories = DefaultCategories
	}
	return &Service{
		repo:   repo,
		feed:   feed,
		opts:   opts,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// FetchAll pulls every configured category. Categories commit independently, so
// a store failure returns the error with earlier categories already persisted.
func (s *Service) FetchAll(ctx context.Context) (FetchResult, error) {
	var out FetchResult
	if s == nil || s.repo == nil || s.feed == nil {
		return out, fmt.Errorf("ingest service is not initialized")
	}

	for _, category := range s.opts.Categories {
		res, err := s.FetchCategory(ctx, category)
		if err != nil {
			return out, fmt.Errorf("fetch category %s: %w", category, err)
		}
		out.Categories = append(out.Categories, res)
		out.New += res.New
		out.Skipped += res.Skipped
	}

	s.logger.Info().
		Int("new", out.New).
		Int("skipped", out.Skipped).
		Int("categories", len(out.Categories)).
		Msg("fetch completed")
	return out, nil
}

// FetchCategory stores the unseen headlines of one category in a single transaction.
func (s *Service) FetchCategory(ctx context.Context, category string) (CategoryResult, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	res := CategoryResult{Category: category}
	if s == nil || s.repo == nil || s.feed == nil {
		return res, fmt.Errorf("ingest service is not initialized")
	}

	items := s.feed.TopHeadlines(ctx, category)
	res.Fetched = len(items)
	if len(items) == 0 {
		s.logger.Debug().Str("category", category).Msg("feed returned no articles")
		return res, nil
	}

	rows := make([]db.Article, 0, len(items))
	skipped := 0
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.URL) == "" || strings.TrimSpace(item.Title) == "" {
			skipped++
			continue
		}
		canonical := CanonicalURL(item.URL)
		if canonical == "" || utf8.RuneCountInString(canonical) > maxURLChars {
			s.logger.Warn().Str("url", item.URL).Msg("skipping article with unusable url")
			skipped++
			continue
		}
		if _, dup := seen[canonical]; dup {
			skipped++
			continue
		}
		seen[canonical] = struct{}{}
		// Known URLs are skipped before the page is downloaded again.
		known, err := s.repo.ArticleExistsByURL(ctx, canonical)
		if err != nil {
			return CategoryResult{Category: category, Fetched: len(items)}, err
		}
		if known {
			skipped++
			continue
		}
		rows = append(rows, s.toRow(ctx, item, category))
	}

	err := s.repo.InTx(ctx, func(tx db.Repository) error {
		res.New, res.Skipped = 0, skipped
		for i := range rows {
			row := rows[i]
			admitted, err := s.dedup.Admit(ctx, tx, &row)
			if err != nil {
				return err
			}
			if admitted {
				res.New++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return CategoryResult{Category: category, Fetched: len(items)}, err
	}

	s.logger.Info().
		Str("category", category).
		Int("fetched", res.Fetched).
		Int("new", res.New).
		Int("skipped", res.Skipped).
		Msg("category stored")
	return res, nil
}

func (s *Service) toRow(ctx context.Context, item newsapi.Article, category string) db.Article {
	content := item.Content
	if s.opts.FullText && s.opts.Fetcher != nil && reader.IsTruncated(content) {
		text, err := s.opts.Fetcher.FetchText(ctx, item.URL)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", item.URL).Msg("full text fetch failed, keeping feed content")
			content = reader.StripTruncationMarker(content)
		} else {
			content = text
		}
	}

	if strings.TrimSpace(item.Category) != "" {
		category = item.Category
	}
	if category == "" {
		category = newsapi.DefaultCategory
	}
	category = truncateRunes(category, maxCategoryChars)
	source := strings.TrimSpace(item.Source)
	if source == "" {
		source = newsapi.UnknownSource
	}

	row := db.Article{
		Title:       truncateRunes(strings.TrimSpace(item.Title), maxTitleChars),
		Source:      truncateRunes(source, maxSourceChars),
		Category:    &category,
		URL:         strings.TrimSpace(item.URL),
		ImageURL:    fitOptional(item.ImageURL, maxURLChars, false),
		Author:      fitOptional(item.Author, maxAuthorChars, true),
		PublishedAt: item.PublishedAt,
	}
	if content != "" {
		row.Content = &content
	}
	return row
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// fitOptional trims p and clamps it to max runes. Values that cannot be cut
// without losing their meaning, such as links, are dropped instead.
func fitOptional(p *string, max int, cut bool) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	if utf8.RuneCountInString(v) > max {
		if !cut {
			return nil
		}
		v = truncateRunes(v, max)
	}
	return &v
}
