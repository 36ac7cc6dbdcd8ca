package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+|http\S+|www\.\S+`)
	markupPattern     = regexp.MustCompile(`<[^>]+>`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:'-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize strips URLs, markup and symbol noise, keeping word characters and sentence punctuation.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	text := urlPattern.ReplaceAllString(raw, " ")
	text = markupPattern.ReplaceAllString(text, " ")
	text = disallowedPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// tokenize lower-cases text and splits it into alphanumeric runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// termFrequencies counts alphanumeric tokens longer than two characters that are not stopwords.
func termFrequencies(text string, stopwords *StopwordSet) map[string]int {
	freq := make(map[string]int)
	for _, token := range tokenize(text) {
		if len([]rune(token)) <= 2 || stopwords.Contains(token) {
			continue
		}
		freq[token]++
	}
	return freq
}
