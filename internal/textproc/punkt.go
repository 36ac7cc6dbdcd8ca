package textproc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	punktOnce      sync.Once
	punktTokenizer *sentences.DefaultSentenceTokenizer
	punktErr       error
)

func loadPunkt() (*sentences.DefaultSentenceTokenizer, error) {
	punktOnce.Do(func() {
		punktTokenizer, punktErr = english.NewSentenceTokenizer(nil)
		if punktErr != nil {
			punktErr = fmt.Errorf("load punkt model: %w", punktErr)
		}
	})
	return punktTokenizer, punktErr
}

// PunktSplitter segments text with the pretrained English Punkt model.
// The model is loaded once per process on first use.
type PunktSplitter struct{}

func (PunktSplitter) Name() string { return "punkt" }

func (PunktSplitter) Split(text string) ([]string, error) {
	tokenizer, err := loadPunkt()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, sentence := range tokenizer.Tokenize(strings.TrimSpace(text)) {
		if trimmed := strings.TrimSpace(sentence.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSentences
	}
	return out, nil
}
