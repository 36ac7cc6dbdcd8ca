package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"horse.fit/newsroom/internal/globaltime"
)

// FaultFunc lets callers inject a failure into a MemoryStore operation.
// op is the method name and id the article or tag id it targets (0 when none).
type FaultFunc func(op string, id int64) error

// MemoryStore is an in-process Repository. Transactions are serialized and
// rolled back by restoring a snapshot, so nested InTx calls behave like savepoints.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	state memoryState
	fault FaultFunc
}

type memoryState struct {
	articles      map[int64]Article
	articleByURL  map[string]int64
	tags          map[string]Tag
	links         map[ArticleTag]struct{}
	nextArticleID int64
	nextTagID     int64
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			articles:     make(map[int64]Article),
			articleByURL: make(map[string]int64),
			tags:         make(map[string]Tag),
			links:        make(map[ArticleTag]struct{}),
		},
	}
}

// SetFault installs fn as the failure injector. Pass nil to clear it.
func (m *MemoryStore) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *MemoryStore) check(op string, id int64) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, id)
}

func (m *MemoryStore) ArticleExistsByURL(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ArticleExistsByURL", 0); err != nil {
		return false, err
	}
	_, ok := m.state.articleByURL[url]
	return ok, nil
}

func (m *MemoryStore) InsertArticle(_ context.Context, article *Article) (bool, error) {
	if article == nil {
		return false, fmt.Errorf("article is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("InsertArticle", 0); err != nil {
		return false, err
	}
	if _, exists := m.state.articleByURL[article.URL]; exists {
		return false, nil
	}

	m.state.nextArticleID++
	now := globaltime.UTC()
	article.ID = m.state.nextArticleID
	article.IsProcessed = false
	article.Summary = nil
	article.CreatedAt = now
	article.UpdatedAt = now
	m.state.articles[article.ID] = *article
	m.state.articleByURL[article.URL] = article.ID
	return true, nil
}

func (m *MemoryStore) ListUnprocessed(_ context.Context, limit int) ([]Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ListUnprocessed", 0); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	out := make([]Article, 0, limit)
	for _, article := range m.state.articles {
		if !article.IsProcessed {
			out = append(out, article)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetArticle(_ context.Context, id int64) (*Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetArticle", id); err != nil {
		return nil, err
	}
	article, ok := m.state.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &article, nil
}

func (m *MemoryStore) MarkProcessed(_ context.Context, id int64, summary string, language *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("MarkProcessed", id); err != nil {
		return false, err
	}
	article, ok := m.state.articles[id]
	if !ok || article.IsProcessed {
		return false, nil
	}
	article.Summary = &summary
	article.Language = language
	article.IsProcessed = true
	article.UpdatedAt = globaltime.UTC()
	m.state.articles[id] = article
	return true, nil
}

func (m *MemoryStore) GetOrCreateTag(_ context.Context, name string) (*Tag, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("tag name is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetOrCreateTag", 0); err != nil {
		return nil, false, err
	}
	if tag, ok := m.state.tags[name]; ok {
		return &tag, false, nil
	}
	m.state.nextTagID++
	tag := Tag{ID: m.state.nextTagID, Name: name, CreatedAt: globaltime.UTC()}
	m.state.tags[name] = tag
	return &tag, true, nil
}

func (m *MemoryStore) LinkTag(_ context.Context, articleID, tagID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("LinkTag", articleID); err != nil {
		return false, err
	}
	if _, ok := m.state.articles[articleID]; !ok {
		return false, fmt.Errorf("link article %d: %w", articleID, ErrNotFound)
	}
	key := ArticleTag{ArticleID: articleID, TagID: tagID}
	if _, exists := m.state.links[key]; exists {
		return false, nil
	}
	m.state.links[key] = struct{}{}
	return true, nil
}

func (m *MemoryStore) ArticleTagNames(_ context.Context, articleID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[int64]string, len(m.state.tags))
	for name, tag := range m.state.tags {
		byID[tag.ID] = name
	}
	names := make([]string, 0)
	for link := range m.state.links {
		if link.ArticleID == articleID {
			names = append(names, byID[link.TagID])
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Counts(_ context.Context) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Counts", 0); err != nil {
		return Counts{}, err
	}

	out := Counts{
		Articles: int64(len(m.state.articles)),
		Tags:     int64(len(m.state.tags)),
		Links:    int64(len(m.state.links)),
	}
	for _, article := range m.state.articles {
		if article.IsProcessed {
			out.Processed++
		}
	}
	out.Unprocessed = out.Articles - out.Processed
	return out, nil
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return (&memoryTx{MemoryStore: m}).InTx(ctx, fn)
}

// memoryTx is the Repository handed to transaction bodies. Its InTx is a savepoint.
type memoryTx struct {
	*MemoryStore
}

func (t *memoryTx) InTx(ctx context.Context, fn func(Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	saved := t.snapshot()
	if err := fn(&memoryTx{MemoryStore: t.MemoryStore}); err != nil {
		t.restore(saved)
		return err
	}
	return nil
}

func (m *MemoryStore) snapshot() memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := memoryState{
		articles:      make(map[int64]Article, len(m.state.articles)),
		articleByURL:  make(map[string]int64, len(m.state.articleByURL)),
		tags:          make(map[string]Tag, len(m.state.tags)),
		links:         make(map[ArticleTag]struct{}, len(m.state.links)),
		nextArticleID: m.state.nextArticleID,
		nextTagID:     m.state.nextTagID,
	}
	for k, v := range m.state.articles {
		out.articles[k] = v
	}
	for k, v := range m.state.articleByURL {
		out.articleByURL[k] = v
	}
	for k, v := range m.state.tags {
		out.tags[k] = v
	}
	for k := range m.state.links {
		out.links[k] = struct{}{}
	}
	return out
}

func (m *MemoryStore) restore(state memoryState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}
