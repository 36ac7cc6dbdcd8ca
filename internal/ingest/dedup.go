package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"horse.fit/newsroom/internal/db"
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"cmpid":   {},
	"smid":    {},
}

// CanonicalURL reduces raw to the form used as the article identity.
// It returns "" when raw is not an absolute http(s) URL.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return ""
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			host = host + ":" + port
		}
	}
	parsed.Host = host
	parsed.User = nil
	parsed.Fragment = ""
	parsed.RawFragment = ""

	path := parsed.EscapedPath()
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "/" {
		path = ""
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		parsed.Path = unescaped
		parsed.RawPath = path
	}

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		values := q[key]
		sort.Strings(values)
		for _, value := range values {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}
	parsed.RawQuery = strings.Join(parts, "&")
	parsed.ForceQuery = false

	return parsed.String()
}

// Deduplicator admits articles whose canonical URL is not stored yet.
type Deduplicator struct{}

// Admit canonicalizes article.URL and inserts the article unprocessed when it is new.
// It reports false for known URLs, including ones inserted concurrently.
func (Deduplicator) Admit(ctx context.Context, repo db.Repository, article *db.Article) (bool, error) {
	if article == nil {
		return false, fmt.Errorf("article is nil")
	}
	canonical := CanonicalURL(article.URL)
	if canonical == "" {
		return false, fmt.Errorf("article url %q is not an absolute http url", article.URL)
	}
	article.URL = canonical

	known, err := repo.ArticleExistsByURL(ctx, canonical)
	if err != nil {
		return false, err
	}
	if known {
		return false, nil
	}
	return repo.InsertArticle(ctx, article)
}
