package textproc

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

const minDetectLetters = 6

// LanguageDetector guesses the ISO 639-1 language of article text.
// The underlying models load on first use.
type LanguageDetector struct {
	languages []lingua.Language

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLanguageDetector limits detection to languages. With none, a set of common European languages is used.
func NewLanguageDetector(languages ...lingua.Language) *LanguageDetector {
	if len(languages) == 0 {
		languages = []lingua.Language{
			lingua.English,
			lingua.French,
			lingua.German,
			lingua.Spanish,
			lingua.Italian,
			lingua.Portuguese,
			lingua.Dutch,
		}
	}
	return &LanguageDetector{languages: languages}
}

// Detect returns a two-letter code, or "" when the sample is too short or ambiguous.
func (d *LanguageDetector) Detect(text string) string {
	if d == nil {
		return ""
	}
	sample := strings.TrimSpace(text)
	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minDetectLetters {
		return ""
	}

	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(d.languages...).
			Build()
	})

	language, exists := d.detector.DetectLanguageOf(sample)
	if !exists {
		return ""
	}
	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// NormalizeLanguageCode returns the primary subtag of a language tag in
// lower case, so "en_US" and "EN-gb" both become "en". Malformed tags yield "".
func NormalizeLanguageCode(raw string) string {
	tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	if tag == "" {
		return ""
	}
	primary, _, _ := strings.Cut(tag, "-")
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}
