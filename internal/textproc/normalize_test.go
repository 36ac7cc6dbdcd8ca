package textproc

import "testing"

func TestNormalizeStripsURLsMarkupAndSymbols(t *testing.T) {
	t.Parallel()

	got := Normalize("Visit https://example.com/path now! <b>Big</b> news & more… www.site.org")
	want := "Visit now! Big news more"
	if got != want {
		t.Fatalf("unexpected normalized text: got %q want %q", got, want)
	}
}

func TestNormalizeKeepsSentencePunctuation(t *testing.T) {
	t.Parallel()

	got := Normalize("  It's here:  prices rose, again; really?  Yes - today.  ")
	want := "It's here: prices rose, again; really? Yes - today."
	if got != want {
		t.Fatalf("unexpected normalized text: got %q want %q", got, want)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	t.Parallel()

	if got := Normalize(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if got := Normalize(" <p></p> "); got != "" {
		t.Fatalf("expected markup-only input to normalize to empty, got %q", got)
	}
}

func TestStopwordSet(t *testing.T) {
	t.Parallel()

	set := MustStopwordSet("en")
	if !set.Contains("The") || !set.Contains("against") {
		t.Fatalf("expected common filler words to be stopwords")
	}
	if set.Contains("markets") {
		t.Fatalf("did not expect content word to be a stopword")
	}
	if _, err := NewStopwordSet("xx"); err == nil {
		t.Fatalf("expected unsupported language error")
	}
}
