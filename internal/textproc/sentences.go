package textproc

import (
	"errors"
	"strings"
	"unicode"
)

var ErrNoSentences = errors.New("no sentences found")

// SentenceSplitter breaks normalized text into sentences.
type SentenceSplitter interface {
	Name() string
	Split(text string) ([]string, error)
}

var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"vs": {}, "etc": {}, "inc": {}, "ltd": {}, "co": {}, "corp": {}, "gov": {}, "gen": {},
	"sen": {}, "rep": {}, "no": {}, "approx": {}, "est": {}, "dept": {}, "fig": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {}, "sep": {},
	"sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// RuleSplitter splits on terminal punctuation followed by whitespace and an
// upper-case letter, digit or quote. Known abbreviations and dotted initialisms
// such as "U.S." do not end a sentence.
type RuleSplitter struct{}

func (RuleSplitter) Name() string { return "rule" }

func (RuleSplitter) Split(text string) ([]string, error) {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil, ErrNoSentences
	}

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && (isTerminal(runes[end+1]) || isCloser(runes[end+1])) {
			end++
		}
		next := end + 1
		if next < len(runes) && !unicode.IsSpace(runes[next]) {
			i = end
			continue
		}
		if runes[i] == '.' && end == i && endsWithAbbreviation(runes[start:i]) {
			i = end
			continue
		}
		if !opensSentence(runes[next:]) {
			i = end
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : end+1])); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = next
		i = end
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}

	if len(sentences) == 0 {
		return nil, ErrNoSentences
	}
	return sentences, nil
}

// PeriodSplitter splits on every period. It never fails on non-empty input.
type PeriodSplitter struct{}

func (PeriodSplitter) Name() string { return "period" }

func (PeriodSplitter) Split(text string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(text, ".") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSentences
	}
	return out, nil
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

func opensSentence(rest []rune) bool {
	for _, r := range rest {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '(' || r == '“' || r == '‘'
	}
	return true
}

func endsWithAbbreviation(before []rune) bool {
	j := len(before)
	for j > 0 && !unicode.IsSpace(before[j-1]) {
		j--
	}
	word := strings.Trim(string(before[j:]), "\"'([")
	if word == "" {
		return false
	}
	if _, ok := abbreviations[strings.ToLower(word)]; ok {
		return true
	}
	if !strings.Contains(word, ".") {
		return false
	}
	for _, part := range strings.Split(word, ".") {
		if len([]rune(part)) > 1 {
			return false
		}
	}
	return true
}
