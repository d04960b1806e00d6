package detect

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// lineIndex holds the byte offset of each line start.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// lineAt maps a byte offset to its 1-based line number.
func (li lineIndex) lineAt(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}

// word is a token with its position in the source text.
type word struct {
	text string
	span lint.Span
}

// tokenize splits text into word tokens. Tokens start on a letter and may
// contain interior apostrophes and hyphens ("couldn't", "Jean-Luc");
// trailing punctuation is trimmed off.
func tokenize(text string) []word {
	var words []word
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsLetter(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsLetter(r) || r == '\'' || r == '’' || r == '-' {
				i += size
				continue
			}
			break
		}
		end := i
		for end > start {
			r, size = utf8.DecodeLastRuneInString(text[start:end])
			if unicode.IsLetter(r) {
				break
			}
			end -= size
		}
		if end > start {
			words = append(words, word{text: text[start:end], span: lint.Span{Start: start, End: end}})
		}
	}
	return words
}

// sentence is a trimmed sentence span with its word count.
type sentence struct {
	span  lint.Span
	words int
}

// noBreakAbbrevs are common honorifics whose trailing period does not end
// a sentence.
var noBreakAbbrevs = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "prof": true,
}

// splitSentences walks the text and returns trimmed sentence spans.
// Sentences end on terminal punctuation (plus any closing quotes) or on a
// paragraph break. The splitter is naive about rare abbreviations;
// under-splitting only shortens word counts, which never produces a false
// hard-cap violation.
func splitSentences(text string) []sentence {
	var sentences []sentence
	start := -1
	flush := func(end int) {
		if start < 0 || end <= start {
			start = -1
			return
		}
		trimmed := strings.TrimRight(text[start:end], " \t\n\r")
		if trimmed == "" {
			start = -1
			return
		}
		sentences = append(sentences, sentence{
			span:  lint.Span{Start: start, End: start + len(trimmed)},
			words: len(strings.Fields(trimmed)),
		})
		start = -1
	}

	i := 0
	for i < len(text) {
		c := text[i]
		if start < 0 {
			if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				i++
				continue
			}
			start = i
		}
		switch {
		case c == '\n' && i+1 < len(text) && text[i+1] == '\n':
			flush(i)
			i++
		case isTerminator(text[i:]):
			if abbreviationDot(text, i) {
				i++
				continue
			}
			j := i
			for j < len(text) && isTerminator(text[j:]) {
				_, size := utf8.DecodeRuneInString(text[j:])
				j += size
			}
			for j < len(text) && isCloser(text[j:]) {
				_, size := utf8.DecodeRuneInString(text[j:])
				j += size
			}
			flush(j)
			i = j
		default:
			i++
		}
	}
	flush(len(text))
	return sentences
}

// sentenceStarts returns the set of offsets that begin a sentence.
func sentenceStarts(sentences []sentence) map[int]bool {
	starts := make(map[int]bool, len(sentences))
	for _, s := range sentences {
		starts[s.span.Start] = true
	}
	return starts
}

func isTerminator(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isCloser(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// abbreviationDot reports whether the period at i closes an honorific or a
// single-letter initial rather than a sentence.
func abbreviationDot(text string, i int) bool {
	if text[i] != '.' {
		return false
	}
	j := i
	for j > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:j])
		if !unicode.IsLetter(r) {
			break
		}
		j -= size
	}
	tok := text[j:i]
	if tok == "" {
		return false
	}
	runes := []rune(tok)
	if len(runes) == 1 && unicode.IsUpper(runes[0]) {
		return true
	}
	return noBreakAbbrevs[strings.ToLower(tok)]
}
