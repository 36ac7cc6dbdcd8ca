package textproc

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxKeywords = 5
	MinKeywordChars    = 20

	maxPhraseWords = 3
	minPhraseChars = 3
)

// Ranker orders candidate keywords or key phrases by importance.
type Ranker interface {
	Name() string
	Rank(text string) ([]string, error)
}

// KeywordExtractor runs a prioritized chain of rankers. The first ranker that
// yields acceptable phrases wins.
type KeywordExtractor struct {
	rankers []Ranker
	logger  zerolog.Logger
}

// NewKeywordExtractor builds an extractor over rankers, appending a frequency
// ranker when the chain does not already end in one.
func NewKeywordExtractor(stopwords *StopwordSet, logger zerolog.Logger, rankers ...Ranker) *KeywordExtractor {
	if len(rankers) == 0 {
		rankers = []Ranker{NewRakeRanker(stopwords)}
	}
	if _, ok := rankers[len(rankers)-1].(*FrequencyRanker); !ok {
		rankers = append(rankers, NewFrequencyRanker(stopwords))
	}
	return &KeywordExtractor{rankers: rankers, logger: logger}
}

// Extract returns up to maxKeywords lower-cased keywords. It never fails.
func (e *KeywordExtractor) Extract(text string, maxKeywords int) []string {
	if len([]rune(strings.TrimSpace(text))) < MinKeywordChars {
		return []string{}
	}
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	cleaned := Normalize(text)
	for _, ranker := range e.rankers {
		ranked, err := safeRank(ranker, cleaned)
		if err != nil {
			e.logger.Warn().Err(err).Str("ranker", ranker.Name()).Msg("keyword ranking failed, trying next ranker")
			continue
		}
		if keywords := acceptKeywords(ranked, maxKeywords); len(keywords) > 0 {
			return keywords
		}
	}
	return []string{}
}

func safeRank(ranker Ranker, text string) (ranked []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ranker %s panicked: %v", ranker.Name(), r)
		}
	}()
	return ranker.Rank(text)
}

// acceptKeywords scans the top 2*max candidates for short, lower-cased phrases.
func acceptKeywords(ranked []string, maxKeywords int) []string {
	window := ranked
	if len(window) > 2*maxKeywords {
		window = window[:2*maxKeywords]
	}

	out := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{}, len(window))
	for _, phrase := range window {
		keyword := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
		if len([]rune(keyword)) < minPhraseChars || len(strings.Fields(keyword)) > maxPhraseWords {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// RakeRanker scores phrases by word co-occurrence. Stopwords and punctuation
// delimit phrases; each word scores degree/frequency and a phrase scores the
// sum of its words.
type RakeRanker struct {
	stopwords *StopwordSet
	maxWords  int
}

func NewRakeRanker(stopwords *StopwordSet) *RakeRanker {
	return &RakeRanker{stopwords: stopwords, maxWords: maxPhraseWords}
}

func (r *RakeRanker) Name() string { return "rake" }

func (r *RakeRanker) Rank(text string) ([]string, error) {
	if r == nil || r.stopwords == nil {
		return nil, fmt.Errorf("rake ranker has no stopword set")
	}

	phrases := r.candidatePhrases(text)
	if len(phrases) == 0 {
		return nil, nil
	}

	frequency := make(map[string]float64)
	degree := make(map[string]float64)
	for _, phrase := range phrases {
		for _, word := range phrase {
			frequency[word]++
			degree[word] += float64(len(phrase))
		}
	}

	type rankedPhrase struct {
		text  string
		score float64
		order int
	}
	ranked := make([]rankedPhrase, len(phrases))
	for i, phrase := range phrases {
		var score float64
		for _, word := range phrase {
			score += degree[word] / frequency[word]
		}
		ranked[i] = rankedPhrase{text: strings.Join(phrase, " "), score: score, order: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, len(ranked))
	for i, phrase := range ranked {
		out[i] = phrase.text
	}
	return out, nil
}

// candidatePhrases returns distinct lower-cased phrases of 1..maxWords words in first-seen order.
func (r *RakeRanker) candidatePhrases(text string) [][]string {
	chunks := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsNumber(c) && !unicode.IsSpace(c) && c != '\'' && c != '-'
	})

	var phrases [][]string
	seen := make(map[string]struct{})
	flush := func(words []string) {
		if len(words) == 0 || len(words) > r.maxWords {
			return
		}
		key := strings.Join(words, " ")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		phrases = append(phrases, append([]string(nil), words...))
	}

	for _, chunk := range chunks {
		var current []string
		for _, raw := range strings.Fields(chunk) {
			word := strings.Trim(raw, "'-")
			if word == "" || r.stopwords.Contains(word) {
				flush(current)
				current = current[:0]
				continue
			}
			current = append(current, word)
		}
		flush(current)
	}
	return phrases
}

// FrequencyRanker ranks single words by occurrence count, breaking ties alphabetically.
type FrequencyRanker struct {
	stopwords *StopwordSet
}

func NewFrequencyRanker(stopwords *StopwordSet) *FrequencyRanker {
	return &FrequencyRanker{stopwords: stopwords}
}

func (f *FrequencyRanker) Name() string { return "frequency" }

func (f *FrequencyRanker) Rank(text string) ([]string, error) {
	var stopwords *StopwordSet
	if f != nil {
		stopwords = f.stopwords
	}
	freq := termFrequencies(text, stopwords)

	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	return words, nil
}
