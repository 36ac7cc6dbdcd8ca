package db

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/newsroom/internal/globaltime"
)

// sqliteSchema mirrors the Postgres tables closely enough to run Store.
const sqliteSchema = `
CREATE TABLE articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(500) NOT NULL,
	content TEXT,
	summary TEXT,
	source VARCHAR(200) NOT NULL,
	category VARCHAR(100),
	url VARCHAR(1000) NOT NULL UNIQUE,
	image_url VARCHAR(1000),
	author VARCHAR(300),
	published_at DATETIME,
	language VARCHAR(8),
	is_processed BOOLEAN NOT NULL DEFAULT false,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX idx_articles_is_processed ON articles (is_processed);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(100) NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE article_tags (
	article_id INTEGER NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
	PRIMARY KEY (article_id, tag_id)
);
`

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        globaltime.UTC,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.Exec(sqliteSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return &Store{db: gdb}
}

func insertStoreArticle(t *testing.T, store *Store, url string) *Article {
	t.Helper()

	article := &Article{Title: "title for " + url, Source: "Wire", URL: url}
	inserted, err := store.InsertArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("insert article: %v", err)
	}
	if !inserted || article.ID == 0 {
		t.Fatalf("expected %s to be inserted, got id %d", url, article.ID)
	}
	return article
}

func TestStoreInsertArticleIgnoresDuplicateURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)
	insertStoreArticle(t, store, "https://example.com/a")

	inserted, err := store.InsertArticle(ctx, &Article{Title: "again", Source: "Wire", URL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate URL to be ignored")
	}

	known, err := store.ArticleExistsByURL(ctx, "https://example.com/a")
	if err != nil || !known {
		t.Fatalf("expected url to be known, got %t %v", known, err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Articles != 1 || counts.Unprocessed != 1 || counts.Processed != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestStoreMarkProcessedIsMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)
	article := insertStoreArticle(t, store, "https://example.com/a")
	lang := "en"

	updated, err := store.MarkProcessed(ctx, article.ID, "first summary", &lang)
	if err != nil || !updated {
		t.Fatalf("expected first mark to update, got updated=%t err=%v", updated, err)
	}
	updated, err = store.MarkProcessed(ctx, article.ID, "second summary", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Fatalf("expected second mark to be a no-op")
	}

	got, err := store.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if !got.IsProcessed || got.Summary == nil || *got.Summary != "first summary" {
		t.Fatalf("unexpected article after second mark: %+v", got)
	}
	if got.Language == nil || *got.Language != "en" {
		t.Fatalf("unexpected language: %v", got.Language)
	}

	pending, err := store.ListUnprocessed(ctx, 10)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no unprocessed articles, got %d", len(pending))
	}
}

func TestStoreGetArticleMissing(t *testing.T) {
	t.Parallel()

	store := newSQLiteStore(t)
	if _, err := store.GetArticle(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetOrCreateTagReusesIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)

	first, created, err := store.GetOrCreateTag(ctx, "economy")
	if err != nil || !created {
		t.Fatalf("expected tag to be created, got created=%t err=%v", created, err)
	}
	second, created, err := store.GetOrCreateTag(ctx, " economy ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected existing tag %d, got %d (created=%t)", first.ID, second.ID, created)
	}
}

func TestStoreGetOrCreateTagConcurrentCallersShareOneRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[int64]struct{}{}
		creates int
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag, created, err := store.GetOrCreateTag(ctx, "markets")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[tag.ID] = struct{}{}
			if created {
				creates++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(ids) != 1 || creates != 1 {
		t.Fatalf("expected one shared tag created once, got ids=%v creates=%d", ids, creates)
	}
	counts, _ := store.Counts(ctx)
	if counts.Tags != 1 {
		t.Fatalf("expected one tag row, got %+v", counts)
	}
}

func TestStoreLinkTagIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)
	article := insertStoreArticle(t, store, "https://example.com/a")
	markets, _, _ := store.GetOrCreateTag(ctx, "markets")
	economy, _, _ := store.GetOrCreateTag(ctx, "economy")

	for _, tag := range []*Tag{markets, economy} {
		linked, err := store.LinkTag(ctx, article.ID, tag.ID)
		if err != nil || !linked {
			t.Fatalf("expected link to be created, got %t %v", linked, err)
		}
	}
	linked, err := store.LinkTag(ctx, article.ID, markets.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linked {
		t.Fatalf("expected repeated link to be a no-op")
	}

	names, err := store.ArticleTagNames(ctx, article.ID)
	if err != nil {
		t.Fatalf("tag names: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"economy", "markets"}) {
		t.Fatalf("unexpected tag names: %v", names)
	}
	counts, _ := store.Counts(ctx)
	if counts.Links != 2 {
		t.Fatalf("unexpected link count: %+v", counts)
	}
}

func TestStoreNestedTxRollsBackOnlySavepoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)

	err := store.InTx(ctx, func(tx Repository) error {
		if _, err := tx.InsertArticle(ctx, &Article{Title: "kept", Source: "Wire", URL: "https://example.com/kept"}); err != nil {
			return err
		}
		inner := tx.InTx(ctx, func(sp Repository) error {
			if _, err := sp.InsertArticle(ctx, &Article{Title: "dropped", Source: "Wire", URL: "https://example.com/dropped"}); err != nil {
				return err
			}
			return errors.New("tagging failed")
		})
		if inner == nil {
			return errors.New("expected savepoint error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer transaction: %v", err)
	}

	if kept, _ := store.ArticleExistsByURL(ctx, "https://example.com/kept"); !kept {
		t.Fatalf("expected outer insert to commit")
	}
	if dropped, _ := store.ArticleExistsByURL(ctx, "https://example.com/dropped"); dropped {
		t.Fatalf("expected savepoint insert to roll back")
	}
}

func TestStoreOuterTxErrorRollsBackEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newSQLiteStore(t)

	err := store.InTx(ctx, func(tx Repository) error {
		if _, err := tx.InsertArticle(ctx, &Article{Title: "gone", Source: "Wire", URL: "https://example.com/gone"}); err != nil {
			return err
		}
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}
	counts, _ := store.Counts(ctx)
	if counts.Articles != 0 {
		t.Fatalf("expected rollback, got %+v", counts)
	}
}
