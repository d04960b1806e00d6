package detect

import (
	"strings"
	"unicode"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/lint"
)

// scanProperNouns finds candidate real-world references: runs of adjacent
// capitalized tokens that are neither excluded common words nor roster
// names. A lone capitalized word at sentence start is skipped outright —
// that position capitalizes everything, so a single token there carries no
// name evidence. Candidates carry no suggestion; resolution belongs to the
// classifier.
func (s *Scanner) scanProperNouns(file, text string, lines lineIndex, quotes []lint.Span, sentences []sentence, rule *catalog.Rule, yield func(lint.Issue) bool) bool {
	words := tokenize(text)
	starts := sentenceStarts(sentences)
	for i := 0; i < len(words); {
		if !s.candidateToken(words[i].text) {
			i++
			continue
		}
		j := i
		for j+1 < len(words) &&
			words[j+1].span.Start == words[j].span.End+1 &&
			text[words[j].span.End] == ' ' &&
			s.candidateToken(words[j+1].text) {
			j++
		}
		span := lint.Span{Start: words[i].span.Start, End: words[j].span.End}
		term := trimPossessive(text[span.Start:span.End])
		span.End = span.Start + len(term)
		switch {
		case term == "":
		case s.known[strings.ToLower(term)]:
		case i == j && starts[words[i].span.Start]:
		default:
			issue := lint.Issue{
				ID:         lint.NewID(),
				Kind:       rule.Kind,
				Severity:   rule.Level(),
				Confidence: rule.Confidence,
				File:       file,
				Line:       lines.lineAt(span.Start),
				Span:       span,
				Original:   term,
				Source:     lint.SourcePattern,
				Reasoning:  rule.Note,
			}
			if !yield(issue) {
				return false
			}
		}
		i = j + 1
	}
	return true
}

// candidateToken reports whether a token looks like part of a name:
// capitalized, at least three runes, some lowercase tail, and not an
// excluded common word or a roster name.
func (s *Scanner) candidateToken(tok string) bool {
	if !isNameToken(tok) {
		return false
	}
	if s.cat.Exclusions.Excluded(tok) {
		return false
	}
	return !s.known[strings.ToLower(tok)]
}

// isNameToken matches the shape of a name word. All-caps tokens are
// acronyms, not names, and stay unflagged.
func isNameToken(tok string) bool {
	runes := []rune(tok)
	if len(runes) < 3 || !unicode.IsUpper(runes[0]) {
		return false
	}
	hasLower := false
	for _, r := range runes[1:] {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
		case r == '\'' || r == '’' || r == '-':
		default:
			return false
		}
	}
	return hasLower
}

// trimPossessive strips a trailing possessive marker from a candidate term
// ("Deborah's" -> "Deborah").
func trimPossessive(term string) string {
	for _, suffix := range []string{"'s", "’s", "'", "’"} {
		if strings.HasSuffix(term, suffix) {
			return term[:len(term)-len(suffix)]
		}
	}
	return term
}
