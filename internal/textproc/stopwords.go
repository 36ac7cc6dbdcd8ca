package textproc

import (
	"fmt"
	"strings"

	"github.com/kljensen/snowball/english"
)

// StopwordSet reports whether a lower-cased token is filler for the configured language.
type StopwordSet struct {
	language string
	words    map[string]struct{}
	fallback func(string) bool
}

var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "ain", "all", "am", "an", "and", "any",
	"are", "aren", "aren't", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "couldn", "couldn't", "d", "did", "didn", "didn't",
	"do", "does", "doesn", "doesn't", "doing", "don", "don't", "down", "during", "each", "few",
	"for", "from", "further", "had", "hadn", "hadn't", "has", "hasn", "hasn't", "have", "haven",
	"haven't", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his", "how",
	"i", "if", "in", "into", "is", "isn", "isn't", "it", "it's", "its", "itself", "just", "ll",
	"m", "ma", "me", "mightn", "mightn't", "more", "most", "mustn", "mustn't", "my", "myself",
	"needn", "needn't", "no", "nor", "not", "now", "o", "of", "off", "on", "once", "only", "or",
	"other", "our", "ours", "ourselves", "out", "over", "own", "re", "s", "same", "shan",
	"shan't", "she", "she's", "should", "should've", "shouldn", "shouldn't", "so", "some",
	"such", "t", "than", "that", "that'll", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "this", "those", "through", "to", "too", "under", "until",
	"up", "ve", "very", "was", "wasn", "wasn't", "we", "were", "weren", "weren't", "what",
	"when", "where", "which", "while", "who", "whom", "why", "will", "with", "won", "won't",
	"wouldn", "wouldn't", "y", "you", "you'd", "you'll", "you're", "you've", "your", "yours",
	"yourself", "yourselves",
}

// NewStopwordSet returns the stopword set for an ISO 639-1 language code.
func NewStopwordSet(language string) (*StopwordSet, error) {
	code := NormalizeLanguageCode(language)
	switch code {
	case "", "en", "english":
		words := make(map[string]struct{}, len(englishStopwords))
		for _, word := range englishStopwords {
			words[word] = struct{}{}
		}
		return &StopwordSet{language: "en", words: words, fallback: english.IsStopWord}, nil
	default:
		return nil, fmt.Errorf("no stopword list for language %q", language)
	}
}

// MustStopwordSet is NewStopwordSet for languages known to be supported.
func MustStopwordSet(language string) *StopwordSet {
	set, err := NewStopwordSet(language)
	if err != nil {
		panic(err)
	}
	return set
}

func (s *StopwordSet) Language() string {
	if s == nil {
		return ""
	}
	return s.language
}

func (s *StopwordSet) Contains(word string) bool {
	if s == nil {
		return false
	}
	word = strings.ToLower(word)
	if _, ok := s.words[word]; ok {
		return true
	}
	return s.fallback != nil && s.fallback(word)
}
