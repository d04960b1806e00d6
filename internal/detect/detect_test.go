package detect

import (
	"testing"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/lint"
)

func defaultScanner(t *testing.T, known ...string) *Scanner {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error: %v", err)
	}
	return NewScanner(cat, known)
}

func issuesOfKind(issues []lint.Issue, kind string) []lint.Issue {
	var out []lint.Issue
	for _, is := range issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

func TestFillerDetection(t *testing.T) {
	s := defaultScanner(t)
	text := "I couldn't help but feel sad."
	issues := s.ScanAll("ch1.txt", text)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %+v", len(issues), issues)
	}
	is := issues[0]
	if is.Kind != "style/filler" {
		t.Errorf("kind = %q, want style/filler", is.Kind)
	}
	if is.Original != "couldn't help but feel" {
		t.Errorf("original = %q", is.Original)
	}
	if is.Suggested != "felt" {
		t.Errorf("suggested = %q, want felt", is.Suggested)
	}
	if is.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", is.Confidence)
	}
	if is.Source != lint.SourcePattern {
		t.Errorf("source = %q, want pattern", is.Source)
	}
	if got := text[is.Span.Start:is.Span.End]; got != is.Original {
		t.Errorf("span slice = %q, original = %q", got, is.Original)
	}
	if is.Line != 1 {
		t.Errorf("line = %d, want 1", is.Line)
	}
	if is.ID == "" {
		t.Error("issue has no id")
	}
}

func TestFixedTextDoesNotRematch(t *testing.T) {
	s := defaultScanner(t)
	if issues := s.ScanAll("ch1.txt", "I felt sad."); len(issues) != 0 {
		t.Errorf("fixed text produced %d issues: %+v", len(issues), issues)
	}
}

func TestNarrationHardCap(t *testing.T) {
	s := defaultScanner(t)
	// 20 words, one sentence, no dialogue
	text := "The caravan crossed the gray plain toward distant mountains while cold wind pushed dust over a long road far ahead."
	issues := s.ScanAll("ch2.txt", text)

	caps := issuesOfKind(issues, "structure/narration-length")
	if len(caps) != 1 {
		t.Fatalf("got %d narration-length issues, want 1: %+v", len(issues), issues)
	}
	is := caps[0]
	if is.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", is.Confidence)
	}
	if is.Suggested != "" {
		t.Errorf("hard-cap issue has suggestion %q, want none", is.Suggested)
	}
	if is.Severity != lint.SeverityHigh {
		t.Errorf("severity = %v, want high", is.Severity)
	}
	if len(issuesOfKind(issues, "structure/dialogue-length")) != 0 {
		t.Error("narration sentence triggered the dialogue cap")
	}
}

func TestDialogueHardCap(t *testing.T) {
	s := defaultScanner(t, "Marie")
	text := `"I think we should leave this place before the storm arrives because the road will wash out and nobody will find us until the next spring thaw," said Marie.`
	issues := s.ScanAll("ch3.txt", text)

	if got := issuesOfKind(issues, "structure/dialogue-length"); len(got) != 1 {
		t.Fatalf("got %d dialogue-length issues: %+v", len(got), issues)
	}
	if got := issuesOfKind(issues, "structure/narration-length"); len(got) != 0 {
		t.Errorf("dialogue sentence triggered the narration cap: %+v", got)
	}
}

func TestRepeatedWord(t *testing.T) {
	s := defaultScanner(t)

	issues := issuesOfKind(s.ScanAll("f", "She crossed the the bridge."), "grammar/repeated-word")
	if len(issues) != 1 {
		t.Fatalf("got %d repeated-word issues", len(issues))
	}
	if issues[0].Original != "the the" || issues[0].Suggested != "the" {
		t.Errorf("original = %q suggested = %q", issues[0].Original, issues[0].Suggested)
	}

	if got := issuesOfKind(s.ScanAll("f", "She had had enough."), "grammar/repeated-word"); len(got) != 0 {
		t.Errorf("legitimate double flagged: %+v", got)
	}

	capitalized := issuesOfKind(s.ScanAll("f", "The the door creaked."), "grammar/repeated-word")
	if len(capitalized) != 1 || capitalized[0].Suggested != "The" {
		t.Errorf("capitalized double: %+v", capitalized)
	}
}

func TestDoubleSpace(t *testing.T) {
	s := defaultScanner(t)

	issues := issuesOfKind(s.ScanAll("f", "He paused.  Then he spoke."), "hygiene/double-space")
	if len(issues) != 1 {
		t.Fatalf("got %d double-space issues", len(issues))
	}
	if issues[0].Suggested != " " {
		t.Errorf("suggested = %q, want single space", issues[0].Suggested)
	}

	if got := issuesOfKind(s.ScanAll("f", "line one\n  indented line"), "hygiene/double-space"); len(got) != 0 {
		t.Errorf("indentation flagged: %+v", got)
	}
}

func TestProperNounCandidates(t *testing.T) {
	s := defaultScanner(t, "Marie")

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "adjacent capitals group into one term",
			text: "She handed the report to Deborah Zack before lunch.",
			want: []string{"Deborah Zack"},
		},
		{
			name: "excluded words stay quiet",
			text: "Suddenly the wind died. However nothing moved.",
			want: nil,
		},
		{
			name: "roster names stay quiet",
			text: "They waited for Marie near the door.",
			want: nil,
		},
		{
			name: "sentence-initial single token skipped",
			text: "Harrow waited by the gate.",
			want: nil,
		},
		{
			name: "mid-sentence single token flagged",
			text: "They saw Harrow at the gate.",
			want: []string{"Harrow"},
		},
		{
			name: "possessive trimmed",
			text: "They borrowed Deborah's pen.",
			want: []string{"Deborah"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := issuesOfKind(s.ScanAll("f", tt.text), "entity/unverified-proper-noun")
			if len(issues) != len(tt.want) {
				t.Fatalf("got %d candidates %+v, want %v", len(issues), issues, tt.want)
			}
			for i, is := range issues {
				if is.Original != tt.want[i] {
					t.Errorf("candidate %d = %q, want %q", i, is.Original, tt.want[i])
				}
				if is.Suggested != "" {
					t.Errorf("candidate carries suggestion %q", is.Suggested)
				}
			}
		})
	}
}

func TestScanIsLazyAndRestartable(t *testing.T) {
	s := defaultScanner(t)
	text := "I couldn't help but feel sad.  She crossed the the bridge."

	count := 0
	for range s.Scan("f", text) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("lazy break consumed %d issues", count)
	}

	first := s.ScanAll("f", text)
	second := s.ScanAll("f", text)
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("restart mismatch: %d vs %d issues", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		a.ID, b.ID = "", ""
		if a != b {
			t.Errorf("issue %d differs across scans:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"two plain sentences", "One here. Two here.", 2},
		{"honorific does not split", "Mr. Zack arrived late.", 1},
		{"initial does not split", "J. Harrow arrived.", 1},
		{"paragraph break splits", "No terminator here\n\nNext paragraph.", 2},
		{"ellipsis ends sentence", "He waited… Then he left.", 2},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %d sentences, want %d", tt.text, len(got), tt.want)
			}
		})
	}
}
