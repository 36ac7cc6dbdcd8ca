package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/db"
)

const (
	DefaultBatchSize        = 50
	DefaultSummarySentences = 3
	DefaultMaxKeywords      = 5
)

type Summarizer interface {
	Summarize(text string, sentenceCount int) string
}

type KeywordExtractor interface {
	Extract(text string, maxKeywords int) []string
}

type LanguageDetector interface {
	Detect(text string) string
}

type Options struct {
	BatchSize        int
	SummarySentences int
	MaxKeywords      int
}

type Service struct {
	repo       db.Repository
	summarizer Summarizer
	keywords   KeywordExtractor
	detector   LanguageDetector
	linker     TagLinker
	opts       Options
	logger     zerolog.Logger
}

// NewService wires the enrichment pipeline. detector may be nil.
func NewService(repo db.Repository, summarizer Summarizer, keywords KeywordExtractor, detector LanguageDetector, opts Options, logger zerolog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = DefaultSummarySentences
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = DefaultMaxKeywords
	}
	return &Service{
		repo:       repo,
		summarizer: summarizer,
		keywords:   keywords,
		detector:   detector,
		opts:       opts,
		logger:     logger.With().Str("component", "enrich").Logger(),
	}
}

func (s *Service) ready() error {
	if s == nil || s.repo == nil || s.summarizer == nil || s.keywords == nil {
		return fmt.Errorf("enrichment service is not initialized")
	}
	return nil
}

// ProcessBatch enriches up to BatchSize unprocessed articles in one transaction.
// Each article runs in its own savepoint; a failing article is rolled back to its
// savepoint, left unprocessed and reported as skipped. Any other failure rolls back
// the whole batch and is returned as a RetryableError.
func (s *Service) ProcessBatch(ctx context.Context) (BatchResult, error) {
	if err := s.ready(); err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	err := s.repo.InTx(ctx, func(tx db.Repository) error {
		out = BatchResult{}
		articles, err := tx.ListUnprocessed(ctx, s.opts.BatchSize)
		if err != nil {
			return err
		}
		out.Selected = len(articles)

		for _, article := range articles {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := s.processInSavepoint(ctx, tx, article)
			switch res.Outcome {
			case OutcomeProcessed:
				out.Processed++
			case OutcomeSkipped:
				out.Skipped++
			}
			out.Articles = append(out.Articles, res)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("batch rolled back")
		return BatchResult{}, &RetryableError{Op: "process batch", Err: err}
	}

	s.logger.Info().
		Int("selected", out.Selected).
		Int("processed", out.Processed).
		Int("skipped", out.Skipped).
		Msg("batch committed")
	return out, nil
}

func (s *Service) processInSavepoint(ctx context.Context, tx db.Repository, article db.Article) ArticleResult {
	var res ArticleResult
	err := tx.InTx(ctx, func(sp db.Repository) error {
		var err error
		res, err = s.enrich(ctx, sp, article)
		return err
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int64("article_id", article.ID).
			Msg("article skipped")
		return ArticleResult{ArticleID: article.ID, Outcome: OutcomeSkipped, Error: err.Error()}
	}
	return res
}

// ProcessArticle enriches a single article. Already processed articles are left untouched.
// A failure of the text pipeline is reported as a skipped outcome; store failures
// come back as a RetryableError.
func (s *Service) ProcessArticle(ctx context.Context, id int64) (ArticleResult, error) {
	if err := s.ready(); err != nil {
		return ArticleResult{}, err
	}

	var res ArticleResult
	err := s.repo.InTx(ctx, func(tx db.Repository) error {
		article, err := tx.GetArticle(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			res = ArticleResult{ArticleID: id, Outcome: OutcomeNotFound}
			return nil
		}
		if err != nil {
			return err
		}
		if article.IsProcessed {
			res = ArticleResult{ArticleID: id, Outcome: OutcomeAlreadyProcessed, Summary: deref(article.Summary), Language: deref(article.Language)}
			return nil
		}
		res, err = s.enrich(ctx, tx, *article)
		return err
	})
	var contentErr *ContentError
	if errors.As(err, &contentErr) {
		s.logger.Warn().Err(err).Int64("article_id", id).Msg("article skipped")
		return ArticleResult{ArticleID: id, Outcome: OutcomeSkipped, Error: err.Error()}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("article_id", id).Msg("article processing rolled back")
		return ArticleResult{}, &RetryableError{Op: fmt.Sprintf("process article %d", id), Err: err}
	}

	s.logger.Info().
		Int64("article_id", id).
		Str("status", string(res.Outcome)).
		Int("tags", len(res.Tags)).
		Msg("article processing finished")
	return res, nil
}

// enrich summarizes, tags and marks one article using repo. Panics in the text
// pipeline are returned as errors.
func (s *Service) enrich(ctx context.Context, repo db.Repository, article db.Article) (res ArticleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ContentError{ArticleID: article.ID, Err: fmt.Errorf("text pipeline panicked: %v", r)}
		}
	}()

	content := strings.TrimSpace(deref(article.Content))
	title := strings.TrimSpace(article.Title)

	summarySource := content
	if summarySource == "" {
		summarySource = title
	}
	fullText := title
	if content != "" {
		fullText = title + ". " + content
	}

	summary := s.summarizer.Summarize(summarySource, s.opts.SummarySentences)
	keywords := s.keywords.Extract(fullText, s.opts.MaxKeywords)

	var language *string
	if s.detector != nil {
		if code := s.detector.Detect(fullText); code != "" {
			language = &code
		}
	}

	linked, err := s.linker.Link(ctx, repo, article.ID, keywords)
	if err != nil {
		return ArticleResult{}, fmt.Errorf("link tags: %w", err)
	}

	updated, err := repo.MarkProcessed(ctx, article.ID, summary, language)
	if err != nil {
		return ArticleResult{}, err
	}
	if !updated {
		return ArticleResult{ArticleID: article.ID, Outcome: OutcomeAlreadyProcessed, Tags: linked.Tags}, nil
	}

	return ArticleResult{
		ArticleID: article.ID,
		Outcome:   OutcomeProcessed,
		Summary:   summary,
		Tags:      linked.Tags,
		Language:  deref(language),
	}, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
