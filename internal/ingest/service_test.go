package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/newsapi"
)

type stubFeed struct {
	byCategory map[string][]newsapi.Article
	calls      []string
}

func (f *stubFeed) TopHeadlines(_ context.Context, category string) []newsapi.Article {
	f.calls = append(f.calls, category)
	return f.byCategory[category]
}

type stubFetcher struct {
	text string
	err  error
	urls []string
}

func (f *stubFetcher) FetchText(_ context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	return f.text, f.err
}

func feedArticle(url, title string) newsapi.Article {
	return newsapi.Article{
		Title:    title,
		Content:  "Body of " + title,
		Source:   "Wire Service",
		Category: "technology",
		URL:      url,
	}
}

func TestFetchCategorySameURLTwiceStoresOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{
		"technology": {
			feedArticle("https://example.com/chips", "Chipmakers expand"),
			feedArticle("https://example.com/chips?utm_source=feed", "Chipmakers expand (syndicated)"),
		},
	}}
	svc := NewService(store, feed, Options{Categories: []string{"technology"}}, zerolog.Nop())

	first, err := svc.FetchCategory(ctx, "technology")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.New != 1 || first.Skipped != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := svc.FetchCategory(ctx, "technology")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.New != 0 || second.Skipped != 2 {
		t.Fatalf("expected no new articles on second fetch, got %+v", second)
	}

	counts, _ := store.Counts(ctx)
	if counts.Articles != 1 || counts.Unprocessed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestFetchAllIteratesCategoriesAndMapsFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	health := feedArticle("https://example.com/health", "Clinic opens")
	health.Category = "health"
	health.Source = ""
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{
		"business": {feedArticle("https://example.com/markets", "Markets climb")},
		"health":   {health, feedArticle("ftp://example.com/file", "Bad link")},
	}}
	svc := NewService(store, feed, Options{}, zerolog.Nop())

	res, err := svc.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(feed.calls) != len(DefaultCategories) {
		t.Fatalf("expected every default category to be fetched, got %v", feed.calls)
	}
	if res.New != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected totals: %+v", res)
	}

	article, err := store.GetArticle(ctx, 2)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if article.Source != newsapi.UnknownSource {
		t.Fatalf("unexpected source default: %q", article.Source)
	}
	if article.Category == nil || *article.Category != "health" {
		t.Fatalf("unexpected category: %v", article.Category)
	}
	if article.IsProcessed || article.Summary != nil {
		t.Fatalf("expected new article to be unprocessed")
	}
}

func TestFetchCategoryStoreFailureRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	inserts := 0
	store.SetFault(func(op string, _ int64) error {
		if op != "InsertArticle" {
			return nil
		}
		inserts++
		if inserts == 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{
		"science": {
			feedArticle("https://example.com/a", "First"),
			feedArticle("https://example.com/b", "Second"),
		},
	}}
	svc := NewService(store, feed, Options{Categories: []string{"science"}}, zerolog.Nop())

	if _, err := svc.FetchAll(ctx); err == nil {
		t.Fatalf("expected store failure to surface")
	}
	store.SetFault(nil)
	counts, _ := store.Counts(ctx)
	if counts.Articles != 0 {
		t.Fatalf("expected category transaction to roll back, got %+v", counts)
	}
}

func TestFetchCategoryHydratesTruncatedContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	clipped := feedArticle("https://example.com/long", "Long read")
	clipped.Content = "The opening paragraph… [+3120 chars]"
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{"general": {clipped}}}
	fetcher := &stubFetcher{text: "The opening paragraph and the rest of the story."}
	svc := NewService(store, feed, Options{Categories: []string{"general"}, FullText: true, Fetcher: fetcher}, zerolog.Nop())

	if _, err := svc.FetchAll(ctx); err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(fetcher.urls) != 1 {
		t.Fatalf("expected one full text fetch, got %d", len(fetcher.urls))
	}
	article, err := store.GetArticle(ctx, 1)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if article.Content == nil || *article.Content != fetcher.text {
		t.Fatalf("unexpected content: %v", article.Content)
	}
}

func TestFetchCategoryKeepsStrippedContentWhenHydrationFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	clipped := feedArticle("https://example.com/long", "Long read")
	clipped.Content = "The opening paragraph… [+3120 chars]"
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{"general": {clipped}}}
	fetcher := &stubFetcher{err: errors.New("paywall")}
	svc := NewService(store, feed, Options{Categories: []string{"general"}, FullText: true, Fetcher: fetcher}, zerolog.Nop())

	if _, err := svc.FetchAll(ctx); err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	article, _ := store.GetArticle(ctx, 1)
	if article.Content == nil || *article.Content != "The opening paragraph" {
		t.Fatalf("unexpected content: %v", article.Content)
	}
}

func TestFetchAllHydratesOnlyUnseenArticles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	clipped := feedArticle("https://example.com/long", "Long read")
	clipped.Content = "The opening paragraph… [+3120 chars]"
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{"general": {clipped}}}
	fetcher := &stubFetcher{text: "The opening paragraph and the rest of the story."}
	svc := NewService(store, feed, Options{Categories: []string{"general"}, FullText: true, Fetcher: fetcher}, zerolog.Nop())

	if _, err := svc.FetchAll(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := svc.FetchAll(ctx)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.New != 0 || second.Skipped != 1 {
		t.Fatalf("unexpected second result: %+v", second)
	}
	if len(fetcher.urls) != 1 {
		t.Fatalf("expected stored article not to be downloaded again, got %d fetches", len(fetcher.urls))
	}
}

func TestFetchAllClampsOverlongFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := db.NewMemoryStore()
	long := feedArticle("https://example.com/wide", "Wide article")
	long.Source = strings.Repeat("s", 250)
	long.Category = strings.Repeat("c", 150)
	author := strings.Repeat("a", 400)
	image := "https://cdn.example.com/" + strings.Repeat("i", 1200)
	long.Author = &author
	long.ImageURL = &image
	overlongURL := feedArticle("https://example.com/"+strings.Repeat("p", 1100), "Too long a link")
	feed := &stubFeed{byCategory: map[string][]newsapi.Article{
		"business": {long, overlongURL},
		"science":  {feedArticle("https://example.com/later", "Later category")},
	}}
	svc := NewService(store, feed, Options{Categories: []string{"business", "science"}}, zerolog.Nop())

	res, err := svc.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if res.New != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected totals: %+v", res)
	}

	article, err := store.GetArticle(ctx, 1)
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if utf8.RuneCountInString(article.Source) != maxSourceChars {
		t.Fatalf("source not clamped: %d", len(article.Source))
	}
	if article.Category == nil || utf8.RuneCountInString(*article.Category) != maxCategoryChars {
		t.Fatalf("category not clamped: %v", article.Category)
	}
	if article.Author == nil || utf8.RuneCountInString(*article.Author) != maxAuthorChars {
		t.Fatalf("author not clamped: %v", article.Author)
	}
	if article.ImageURL != nil {
		t.Fatalf("expected overlong image url to be dropped")
	}
	if _, err := store.GetArticle(ctx, 2); err != nil {
		t.Fatalf("expected later category to be stored: %v", err)
	}
}
