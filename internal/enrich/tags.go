package enrich

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"horse.fit/newsroom/internal/db"
)

const (
	minTagLength = 2
	maxTagLength = 100
)

// NormalizeTag lower-cases and trims a keyword and reports whether it is usable as a tag name.
func NormalizeTag(raw string) (string, bool) {
	name := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	n := utf8.RuneCountInString(name)
	if n < minTagLength || n > maxTagLength {
		return "", false
	}
	return name, true
}

// LinkResult describes what a Link call changed.
type LinkResult struct {
	Tags     []string `json:"tags"`
	Created  int      `json:"created"`
	Linked   int      `json:"linked"`
	Rejected []string `json:"rejected,omitempty"`
}

// TagLinker attaches keyword tags to an article. Repeating a call with the same
// keywords leaves the article's tag set unchanged.
type TagLinker struct{}

func (TagLinker) Link(ctx context.Context, repo db.Repository, articleID int64, keywords []string) (LinkResult, error) {
	var out LinkResult
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		name, ok := NormalizeTag(keyword)
		if !ok {
			out.Rejected = append(out.Rejected, keyword)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		tag, created, err := repo.GetOrCreateTag(ctx, name)
		if err != nil {
			return out, fmt.Errorf("tag %q: %w", name, err)
		}
		if created {
			out.Created++
		}
		linked, err := repo.LinkTag(ctx, articleID, tag.ID)
		if err != nil {
			return out, err
		}
		if linked {
			out.Linked++
		}
		out.Tags = append(out.Tags, name)
	}
	return out, nil
}
