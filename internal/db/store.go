package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/newsroom/internal/globaltime"
)

var ErrNotFound = errors.New("record not found")

// Repository is the persistence surface used by ingestion and enrichment.
// Implementations must make InsertArticle, GetOrCreateTag, LinkTag and
// MarkProcessed safe to repeat.
type Repository interface {
	ArticleExistsByURL(ctx context.Context, url string) (bool, error)
	// InsertArticle reports false when another row already holds the URL.
	InsertArticle(ctx context.Context, article *Article) (bool, error)
	ListUnprocessed(ctx context.Context, limit int) ([]Article, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	// MarkProcessed sets summary and flips the flag only while it is still false.
	MarkProcessed(ctx context.Context, id int64, summary string, language *string) (bool, error)
	// GetOrCreateTag reports true when this call created the tag.
	GetOrCreateTag(ctx context.Context, name string) (*Tag, bool, error)
	LinkTag(ctx context.Context, articleID, tagID int64) (bool, error)
	ArticleTagNames(ctx context.Context, articleID int64) ([]string, error)
	Counts(ctx context.Context) (Counts, error)
	// InTx runs fn in a transaction. Nested calls open a savepoint.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Store is the Postgres Repository.
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

func NewStore(pool *Pool) *Store {
	return &Store{db: pool.GORM()}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not initialized")
	}
	return nil
}

func (s *Store) ArticleExistsByURL(ctx context.Context, url string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&Article{}).
		Where("url = ?", url).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check article url: %w", err)
	}
	return count > 0, nil
}

func (s *Store) InsertArticle(ctx context.Context, article *Article) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if article == nil {
		return false, fmt.Errorf("article is nil")
	}

	article.IsProcessed = false
	article.Summary = nil
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).
		Create(article)
	if res.Error != nil {
		return false, fmt.Errorf("insert article: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]Article, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var articles []Article
	err := s.db.WithContext(ctx).
		Where("is_processed = ?", false).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("list unprocessed articles: %w", err)
	}
	return articles, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*Article, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var article Article
	err := s.db.WithContext(ctx).First(&article, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	return &article, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id int64, summary string, language *string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	res := s.db.WithContext(ctx).
		Model(&Article{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]any{
			"summary":      summary,
			"language":     language,
			"is_processed": true,
			"updated_at":   globaltime.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark article %d processed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) GetOrCreateTag(ctx context.Context, name string) (*Tag, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("tag name is empty")
	}

	tag := Tag{Name: name}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&tag)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("create tag %q: %w", name, res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return &tag, true, nil
	}

	// Lost the race to a concurrent writer: the first insert owns the identity.
	var existing Tag
	if err := s.db.WithContext(ctx).First(&existing, "name = ?", name).Error; err != nil {
		return nil, false, fmt.Errorf("re-fetch tag %q: %w", name, err)
	}
	return &existing, false, nil
}

func (s *Store) LinkTag(ctx context.Context, articleID, tagID int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ArticleTag{ArticleID: articleID, TagID: tagID})
	if res.Error != nil {
		return false, fmt.Errorf("link article %d to tag %d: %w", articleID, tagID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ArticleTagNames(ctx context.Context, articleID int64) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var names []string
	err := s.db.WithContext(ctx).
		Table("tags").
		Joins("JOIN article_tags ON article_tags.tag_id = tags.id").
		Where("article_tags.article_id = ?", articleID).
		Order("tags.name ASC").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list tags for article %d: %w", articleID, err)
	}
	return names, nil
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if err := s.ready(); err != nil {
		return Counts{}, err
	}

	var out Counts
	err := s.db.WithContext(ctx).Raw(`
SELECT
	(SELECT COUNT(*) FROM articles) AS articles,
	(SELECT COUNT(*) FROM articles WHERE is_processed) AS processed,
	(SELECT COUNT(*) FROM articles WHERE NOT is_processed) AS unprocessed,
	(SELECT COUNT(*) FROM tags) AS tags,
	(SELECT COUNT(*) FROM article_tags) AS links
`).Scan(&out).Error
	if err != nil {
		return Counts{}, fmt.Errorf("count corpus: %w", err)
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn func(Repository) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
