package chunker

import (
	"strings"
	"testing"
)

func TestSplitTilesText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("The lantern swung in the wind. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	chunks := Split(text, Options{MaxBytes: 200})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Start != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].Start)
	}
	var rebuilt strings.Builder
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if i > 0 && c.Start != chunks[i-1].End {
			t.Errorf("chunk %d starts at %d, previous ends at %d", i, c.Start, chunks[i-1].End)
		}
		if c.Text != text[c.Start:c.End] {
			t.Errorf("chunk %d text does not match its span", i)
		}
		rebuilt.WriteString(c.Text)
	}
	if chunks[len(chunks)-1].End != len(text) {
		t.Errorf("last chunk ends at %d, text has %d bytes", chunks[len(chunks)-1].End, len(text))
	}
	if rebuilt.String() != text {
		t.Error("chunks do not reassemble the input")
	}
}

func TestSplitKeepsSentencesWhole(t *testing.T) {
	text := "First sentence here. Second sentence follows it. Third one closes the paragraph."
	chunks := Split(text, Options{MaxBytes: 30})
	for i, c := range chunks[:len(chunks)-1] {
		trimmed := strings.TrimRight(c.Text, " \t\n")
		if !strings.HasSuffix(trimmed, ".") {
			t.Errorf("chunk %d ends mid-sentence: %q", i, c.Text)
		}
	}
}

func TestSplitOversizedSentence(t *testing.T) {
	long := "This single sentence keeps going and going without any terminal punctuation until it finally ends far beyond the configured chunk size limit."
	chunks := Split(long, Options{MaxBytes: 40})
	if len(chunks) != 1 {
		t.Fatalf("oversized sentence split into %d chunks", len(chunks))
	}
	if chunks[0].Text != long {
		t.Error("oversized sentence was altered")
	}
}

func TestSplitHonorificNotABoundary(t *testing.T) {
	text := "They wrote to Mr. Zack about the bridge. The reply came quickly."
	chunks := Split(text, Options{MaxBytes: 45})
	for _, c := range chunks {
		trimmed := strings.TrimRight(c.Text, " ")
		if strings.HasSuffix(trimmed, "Mr.") {
			t.Errorf("chunk boundary after honorific: %q", c.Text)
		}
	}
}

func TestTrailingContext(t *testing.T) {
	text := strings.Repeat("One two three four five. ", 20)
	chunks := Split(text, Options{MaxBytes: 120, ContextWords: 5})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Trailing != "" {
		t.Errorf("first chunk carries trailing context %q", chunks[0].Trailing)
	}
	for i := 1; i < len(chunks); i++ {
		got := chunks[i].Trailing
		if got == "" {
			t.Fatalf("chunk %d has no trailing context", i)
		}
		words := strings.Fields(got)
		if len(words) > 5 {
			t.Errorf("chunk %d trailing context has %d words, cap is 5", i, len(words))
		}
		prevWords := strings.Fields(chunks[i-1].Text)
		tail := prevWords[len(prevWords)-len(words):]
		if strings.Join(tail, " ") != got {
			t.Errorf("chunk %d trailing context %q is not the previous tail %q", i, got, strings.Join(tail, " "))
		}
	}
}

func TestTrailingContextHelper(t *testing.T) {
	if got := TrailingContext("a b c d e", 3); got != "c d e" {
		t.Errorf("TrailingContext = %q, want %q", got, "c d e")
	}
	if got := TrailingContext("a b", 5); got != "a b" {
		t.Errorf("TrailingContext = %q, want %q", got, "a b")
	}
	if got := TrailingContext("", 5); got != "" {
		t.Errorf("TrailingContext = %q, want empty", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := Split("", Options{}); chunks != nil {
		t.Errorf("Split(empty) = %v, want nil", chunks)
	}
}
