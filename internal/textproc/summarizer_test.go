package textproc

import (
	"errors"
	"strings"
	"testing"
)

type failingSplitter struct{}

func (failingSplitter) Name() string { return "failing" }

func (failingSplitter) Split(string) ([]string, error) {
	return nil, errors.New("tokenizer unavailable")
}

type panickingSplitter struct{}

func (panickingSplitter) Name() string { return "panicking" }

func (panickingSplitter) Split(string) ([]string, error) {
	panic("tokenizer crashed")
}

const fiveSentences = "Markets rallied today as investors cheered strong earnings. " +
	"The weather was mild. " +
	"Investors expect markets to keep rising on earnings momentum. " +
	"A local bakery opened. " +
	"Analysts said markets and earnings drove investors higher."

func TestSummarizeShortTextPassthrough(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(MustStopwordSet("en"))
	if got := s.Summarize("  Tiny <b>text</b>.  ", 3); got != "Tiny <b>text</b>." {
		t.Fatalf("unexpected short summary: %q", got)
	}
}

func TestSummarizeFewSentencesReturnsCleanedText(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(MustStopwordSet("en"))
	text := "The council approved the new budget on Tuesday night. Spending on parks will double & more."
	got := s.Summarize(text, 3)
	want := "The council approved the new budget on Tuesday night. Spending on parks will double more."
	if got != want {
		t.Fatalf("unexpected summary: got %q want %q", got, want)
	}
}

func TestSummarizePicksTopSentencesInOriginalOrder(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(MustStopwordSet("en"))
	got := s.Summarize(fiveSentences, 3)
	want := "Markets rallied today as investors cheered strong earnings. " +
		"Investors expect markets to keep rising on earnings momentum. " +
		"Analysts said markets and earnings drove investors higher."
	if got != want {
		t.Fatalf("unexpected summary:\n got: %q\nwant: %q", got, want)
	}
}

func TestSummarizeNeverExceedsSentenceCount(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(MustStopwordSet("en"))
	for n := 1; n <= 5; n++ {
		summary := s.Summarize(fiveSentences, n)
		sentences, err := RuleSplitter{}.Split(summary)
		if err != nil {
			t.Fatalf("split summary: %v", err)
		}
		if len(sentences) > n {
			t.Fatalf("summary for n=%d has %d sentences: %q", n, len(sentences), summary)
		}

		last := -1
		for _, sentence := range sentences {
			idx := strings.Index(fiveSentences, sentence)
			if idx < 0 {
				t.Fatalf("summary sentence %q not found in source", sentence)
			}
			if idx <= last {
				t.Fatalf("summary sentences out of order for n=%d: %q", n, summary)
			}
			last = idx
		}
	}
}

func TestSummarizeFallsBackToTruncation(t *testing.T) {
	t.Parallel()

	text := "First part here. Second part there. Third part. Fourth part is long enough for fifty."
	want := "First part here. Second part there."

	for _, splitter := range []SentenceSplitter{failingSplitter{}, panickingSplitter{}} {
		s := NewSummarizer(MustStopwordSet("en"), WithSplitters(splitter))
		if got := s.Summarize(text, 2); got != want {
			t.Fatalf("%s: unexpected fallback summary: got %q want %q", splitter.Name(), got, want)
		}
	}
}

func TestSummarizeBoundsLowercaseSentences(t *testing.T) {
	t.Parallel()

	text := "The economy grew strongly in the third quarter. " +
		"markets rallied on the upbeat growth data. " +
		"investors cheered the economy and the markets. " +
		"the central bank kept rates unchanged. " +
		"analysts expect the economy to keep growing."

	s := NewSummarizer(MustStopwordSet("en"))
	summary := s.Summarize(text, 3)
	if summary == Normalize(text) {
		t.Fatalf("expected the article to be cut, got it back whole")
	}
	sentences, err := PunktSplitter{}.Split(summary)
	if err != nil {
		t.Fatalf("split summary: %v", err)
	}
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %q", len(sentences), summary)
	}
}

func TestSummarizeShortSentenceListIsReturnedUnchanged(t *testing.T) {
	t.Parallel()

	// Five sentences but under MinSummaryChars: nothing is selected.
	s := NewSummarizer(MustStopwordSet("en"))
	if got := s.Summarize("A. B. C. D. E.", 3); got != "A. B. C. D. E." {
		t.Fatalf("unexpected summary: %q", got)
	}
}
