package textproc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DefaultSummarySentences = 3
	MinSummaryChars         = 50
)

// Summarizer selects the highest scoring sentences of a text and returns them in reading order.
type Summarizer struct {
	stopwords *StopwordSet
	splitters []SentenceSplitter
	logger    zerolog.Logger
}

type SummarizerOption func(*Summarizer)

// WithSplitters replaces the sentence splitter chain. Splitters are tried in order.
func WithSplitters(splitters ...SentenceSplitter) SummarizerOption {
	return func(s *Summarizer) {
		s.splitters = splitters
	}
}

func WithSummarizerLogger(logger zerolog.Logger) SummarizerOption {
	return func(s *Summarizer) {
		s.logger = logger
	}
}

func NewSummarizer(stopwords *StopwordSet, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		stopwords: stopwords,
		splitters: []SentenceSplitter{PunktSplitter{}, RuleSplitter{}},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoredSentence struct {
	index int
	score float64
	text  string
}

// Summarize returns at most sentenceCount sentences of text. Short inputs come back trimmed and untouched.
func (s *Summarizer) Summarize(text string, sentenceCount int) (summary string) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < MinSummaryChars {
		return trimmed
	}
	if sentenceCount <= 0 {
		sentenceCount = DefaultSummarySentences
	}

	cleaned := Normalize(trimmed)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Msg("summarizer failed, using truncation")
			summary = truncateSentences(cleaned, sentenceCount)
		}
	}()

	sentences, err := s.split(cleaned)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sentence splitting failed, using truncation")
		return truncateSentences(cleaned, sentenceCount)
	}
	if len(sentences) <= sentenceCount {
		return cleaned
	}

	freq := termFrequencies(cleaned, s.stopwords)
	total := float64(len(sentences))
	scored := make([]scoredSentence, len(sentences))
	for i, sentence := range sentences {
		var score float64
		for _, token := range tokenize(sentence) {
			score += float64(freq[token])
		}
		score *= 1.0 + 0.1*(total-float64(i))/total
		scored[i] = scoredSentence{index: i, score: score, text: sentence}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	top := scored[:sentenceCount]
	sort.Slice(top, func(i, j int) bool {
		return top[i].index < top[j].index
	})

	parts := make([]string, len(top))
	for i, sentence := range top {
		parts[i] = sentence.text
	}
	return strings.Join(parts, " ")
}

func (s *Summarizer) split(text string) ([]string, error) {
	var lastErr error = ErrNoSentences
	for _, splitter := range s.splitters {
		sentences, err := splitter.Split(text)
		if err != nil {
			lastErr = fmt.Errorf("%s splitter: %w", splitter.Name(), err)
			continue
		}
		if len(sentences) > 0 {
			return sentences, nil
		}
	}
	return nil, lastErr
}

// truncateSentences keeps the first n period-separated fragments.
func truncateSentences(text string, n int) string {
	fragments, err := PeriodSplitter{}.Split(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	if len(fragments) > n {
		fragments = fragments[:n]
	}
	return strings.Join(fragments, ". ") + "."
}
