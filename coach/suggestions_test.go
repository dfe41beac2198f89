package coach

import (
	"errors"
	"testing"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"- hello", "hello"},
		{"1) hello", "hello"},
		{"• hello\r", "hello"},
		{"— hello", "hello"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CleanText(tc.in); got != tc.want {
			t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseSuggestionsNumberedSections(t *testing.T) {
	t.Parallel()

	text := "1) Best reply here\n" +
		"2) Alternatives:\n" +
		"- first alt\n" +
		"- second alt\n" +
		"3) Why this works: because.\n" +
		"4) Next step: wait."
	got, err := ParseSuggestions(text)
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	if got.Best != "Best reply here" {
		t.Fatalf("Best = %q, want %q", got.Best, "Best reply here")
	}
	if len(got.Alternatives) != 2 {
		t.Fatalf("Alternatives = %v, want 2 entries", got.Alternatives)
	}
	if got.Alternatives[0] != "first alt" || got.Alternatives[1] != "second alt" {
		t.Fatalf("Alternatives = %v", got.Alternatives)
	}
}

func TestParseSuggestionsBestOnNextLine(t *testing.T) {
	t.Parallel()

	text := "1)\nThe actual best\n2)\n- alt one"
	got, err := ParseSuggestions(text)
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	if got.Best != "The actual best" {
		t.Fatalf("Best = %q, want %q", got.Best, "The actual best")
	}
}

func TestParseSuggestionsContinuationFolds(t *testing.T) {
	t.Parallel()

	text := "1) Best\n2)\n- a long alternative\nthat wraps\n- another"
	got, err := ParseSuggestions(text)
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	if len(got.Alternatives) != 2 {
		t.Fatalf("Alternatives = %v, want 2", got.Alternatives)
	}
	if got.Alternatives[0] != "a long alternative that wraps" {
		t.Fatalf("Alternatives[0] = %q", got.Alternatives[0])
	}
}

func TestParseSuggestionsCapsAlternatives(t *testing.T) {
	t.Parallel()

	text := "1) Best\n2)\n- a\n- b\n- c\n- d\n- e\n- f\n- g"
	got, err := ParseSuggestions(text)
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	if len(got.Alternatives) != 5 {
		t.Fatalf("Alternatives = %d entries, want capped at 5", len(got.Alternatives))
	}
}

func TestParseSuggestionsFallbackFirstLine(t *testing.T) {
	t.Parallel()

	got, err := ParseSuggestions("\n\nJust a plain answer with no structure.\nSecond line.")
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	if got.Best != "Just a plain answer with no structure." {
		t.Fatalf("Best = %q", got.Best)
	}
	if len(got.Alternatives) != 0 {
		t.Fatalf("Alternatives = %v, want none", got.Alternatives)
	}
}

func TestParseSuggestionsEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   \n\n  "} {
		if _, err := ParseSuggestions(in); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("ParseSuggestions(%q) error = %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestParseSuggestionsStripsDebugFooter(t *testing.T) {
	t.Parallel()

	text := "1) Best\n2)\n- alt\n—\nDebug: mode=base stage=S1"
	got, err := ParseSuggestions(text)
	if err != nil {
		t.Fatalf("ParseSuggestions() error = %v", err)
	}
	for _, alt := range got.Alternatives {
		if alt == "Debug: mode=base stage=S1" {
			t.Fatalf("debug footer leaked into alternatives: %v", got.Alternatives)
		}
	}
	if len(got.Alternatives) != 1 {
		t.Fatalf("Alternatives = %v, want just the one alt", got.Alternatives)
	}
}
