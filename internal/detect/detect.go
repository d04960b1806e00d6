// Package detect implements the pattern detector: a deterministic,
// side-effect-free scan of chapter text against the loaded catalog. It
// makes no external calls; context-dependent judgments belong to the
// classifier.
package detect

import (
	"iter"
	"sort"
	"strings"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/segment"
)

// allowedDoubles are word repetitions that are valid English and never
// flagged ("had had", "that that").
var allowedDoubles = map[string]bool{
	"had":  true,
	"that": true,
}

// Scanner scans text against a catalog. Construct once per run; Scan may
// be called concurrently from chapter workers.
type Scanner struct {
	cat   *catalog.Catalog
	known map[string]bool
}

// NewScanner builds a scanner for the given catalog. known lists roster
// names (and aliases) that must never be flagged as unverified proper
// nouns.
func NewScanner(cat *catalog.Catalog, known []string) *Scanner {
	s := &Scanner{cat: cat, known: make(map[string]bool, len(known))}
	for _, name := range known {
		s.known[strings.ToLower(name)] = true
	}
	return s
}

// Scan returns a lazy, restartable sequence of issues found in text.
// Issues come out in catalog order, then document order; ranging over the
// sequence twice re-runs the scan.
func (s *Scanner) Scan(file, text string) iter.Seq[lint.Issue] {
	return func(yield func(lint.Issue) bool) {
		lines := newLineIndex(text)
		quotes := segment.QuoteSpans(text)
		sentences := splitSentences(text)
		for i := range s.cat.Rules {
			rule := &s.cat.Rules[i]
			ok := true
			switch rule.Trigger {
			case catalog.TriggerPhrase, catalog.TriggerTemplate:
				ok = s.scanPattern(file, text, lines, rule, yield)
			case catalog.TriggerStructural:
				ok = s.scanStructural(file, text, lines, quotes, sentences, rule, yield)
			}
			if !ok {
				return
			}
		}
	}
}

// ScanAll collects the full issue sequence into a slice.
func (s *Scanner) ScanAll(file, text string) []lint.Issue {
	var issues []lint.Issue
	for issue := range s.Scan(file, text) {
		issues = append(issues, issue)
	}
	return issues
}

// scanPattern walks phrase and template matches left to right. Matches are
// located incrementally so the sequence stays lazy.
func (s *Scanner) scanPattern(file, text string, lines lineIndex, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	re := rule.Pattern()
	offset := 0
	for offset <= len(text) {
		m := re.FindStringSubmatchIndex(text[offset:])
		if m == nil {
			return true
		}
		start, end := offset+m[0], offset+m[1]
		matched := text[start:end]
		verb := ""
		if len(m) >= 4 && m[2] >= 0 {
			verb = text[offset+m[2] : offset+m[3]]
		}
		issue := lint.Issue{
			ID:         lint.NewID(),
			Kind:       rule.Kind,
			Severity:   rule.Level(),
			Confidence: rule.Confidence,
			File:       file,
			Line:       lines.lineAt(start),
			Span:       lint.Span{Start: start, End: end},
			Original:   matched,
			Suggested:  rule.Expand(matched, verb),
			Source:     lint.SourcePattern,
			Reasoning:  rule.Note,
		}
		if !yield(issue) {
			return false
		}
		offset = end
	}
	return true
}

func (s *Scanner) scanStructural(file, text string, lines lineIndex, quotes []lint.Span, sentences []sentence, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	switch rule.Check {
	case catalog.CheckRepeatedWord:
		return s.scanRepeatedWords(file, text, lines, rule, yield)
	case catalog.CheckDoubleSpace:
		return s.scanDoubleSpaces(file, text, lines, rule, yield)
	case catalog.CheckStraightQuotes:
		return s.scanStraightQuotes(file, text, lines, rule, yield)
	case catalog.CheckSentenceLength:
		return s.scanSentenceLengths(file, text, lines, quotes, sentences, rule, yield)
	case catalog.CheckProperNounCandidate:
		return s.scanProperNouns(file, text, lines, quotes, sentences, rule, yield)
	}
	return true
}

// scanRepeatedWords flags immediate case-insensitive duplicates. The
// suggestion keeps the first occurrence so sentence-initial capitals
// survive the fix.
func (s *Scanner) scanRepeatedWords(file, text string, lines lineIndex, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	words := tokenize(text)
	for i := 1; i < len(words); i++ {
		prev, cur := words[i-1], words[i]
		if !strings.EqualFold(prev.text, cur.text) {
			continue
		}
		if allowedDoubles[strings.ToLower(cur.text)] {
			continue
		}
		between := text[prev.span.End:cur.span.Start]
		if strings.TrimSpace(between) != "" {
			continue
		}
		issue := lint.Issue{
			ID:         lint.NewID(),
			Kind:       rule.Kind,
			Severity:   rule.Level(),
			Confidence: rule.Confidence,
			File:       file,
			Line:       lines.lineAt(prev.span.Start),
			Span:       lint.Span{Start: prev.span.Start, End: cur.span.End},
			Original:   text[prev.span.Start:cur.span.End],
			Suggested:  prev.text,
			Source:     lint.SourcePattern,
			Reasoning:  rule.Note,
		}
		if !yield(issue) {
			return false
		}
	}
	return true
}

// scanDoubleSpaces flags interior runs of two or more spaces. Runs at line
// start are indentation and stay untouched.
func (s *Scanner) scanDoubleSpaces(file, text string, lines lineIndex, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	for i := 0; i < len(text); {
		if text[i] != ' ' {
			i++
			continue
		}
		j := i
		for j < len(text) && text[j] == ' ' {
			j++
		}
		atLineStart := i == 0 || text[i-1] == '\n'
		if j-i >= 2 && !atLineStart {
			issue := lint.Issue{
				ID:         lint.NewID(),
				Kind:       rule.Kind,
				Severity:   rule.Level(),
				Confidence: rule.Confidence,
				File:       file,
				Line:       lines.lineAt(i),
				Span:       lint.Span{Start: i, End: j},
				Original:   text[i:j],
				Suggested:  " ",
				Source:     lint.SourcePattern,
				Reasoning:  rule.Note,
			}
			if !yield(issue) {
				return false
			}
		}
		i = j
	}
	return true
}

// scanStraightQuotes flags straight double quotes. Curly replacements need
// pairing a human should check, so no suggestion is emitted.
func (s *Scanner) scanStraightQuotes(file, text string, lines lineIndex, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	for i := 0; i < len(text); i++ {
		if text[i] != '"' {
			continue
		}
		issue := lint.Issue{
			ID:         lint.NewID(),
			Kind:       rule.Kind,
			Severity:   rule.Level(),
			Confidence: rule.Confidence,
			File:       file,
			Line:       lines.lineAt(i),
			Span:       lint.Span{Start: i, End: i + 1},
			Original:   `"`,
			Source:     lint.SourcePattern,
			Reasoning:  rule.Note,
		}
		if !yield(issue) {
			return false
		}
	}
	return true
}

// scanSentenceLengths applies the word hard cap for the rule's segment
// type. Hard-cap issues never carry a suggestion: there is no automatic
// sentence splitter.
func (s *Scanner) scanSentenceLengths(file, text string, lines lineIndex, quotes []lint.Span, sentences []sentence, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	wantDialogue := rule.AppliesTo == catalog.AppliesDialogue
	for _, sent := range sentences {
		if sent.words <= rule.Limit {
			continue
		}
		if spanInQuotes(sent.span, quotes) != wantDialogue {
			continue
		}
		issue := lint.Issue{
			ID:         lint.NewID(),
			Kind:       rule.Kind,
			Severity:   rule.Level(),
			Confidence: rule.Confidence,
			File:       file,
			Line:       lines.lineAt(sent.span.Start),
			Span:       sent.span,
			Original:   text[sent.span.Start:sent.span.End],
			Source:     lint.SourcePattern,
			Reasoning:  rule.Note,
		}
		if !yield(issue) {
			return false
		}
	}
	return true
}

// spanInQuotes reports whether the span's midpoint falls inside a quoted
// region.
func spanInQuotes(span lint.Span, quotes []lint.Span) bool {
	mid := span.Start + span.Len()/2
	i := sort.Search(len(quotes), func(i int) bool { return quotes[i].End > mid })
	return i < len(quotes) && quotes[i].Start <= mid
}

// WordCount counts words the way the structural rules count them.
func WordCount(text string) int {
	return len(tokenize(text))
}

// SentenceCounts reports how many sentences fall in dialogue and in
// narration, by the same quote-midpoint rule the hard caps use. These are
// the denominators for cap compliance scores.
func SentenceCounts(text string) (dialogue, narration int) {
	quotes := segment.QuoteSpans(text)
	for _, sent := range splitSentences(text) {
		if spanInQuotes(sent.span, quotes) {
			dialogue++
		} else {
			narration++
		}
	}
	return dialogue, narration
}
