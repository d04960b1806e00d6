// Package chunker splits chapter text into bounded chunks for the
// classifier. Boundaries fall only on sentence or paragraph starts, and
// chunks tile the source exactly: chunk N ends where chunk N+1 begins.
// Segment spans computed inside a chunk therefore shift cleanly back into
// chapter coordinates, and no issue can be counted twice across a
// boundary.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxBytes bounds one chunk; the classifier's context window
	// comfortably fits this plus the trailing context and prompt.
	DefaultMaxBytes = 2800

	// DefaultContextWords is how many words of the previous chunk ride
	// along to keep pronoun resolution stable across the boundary.
	DefaultContextWords = 25
)

// Chunk is one bounded slice of chapter text. Start and End are byte
// offsets into the chapter; Trailing carries context words from the
// previous chunk and is not part of the span.
type Chunk struct {
	Index    int
	Start    int
	End      int
	Text     string
	Trailing string
}

// Options configure Split. Zero values take the defaults.
type Options struct {
	MaxBytes     int
	ContextWords int
}

// Split tiles text into chunks. A single sentence longer than MaxBytes
// becomes one oversized chunk; sentences are never cut in the middle.
func Split(text string, opts Options) []Chunk {
	if text == "" {
		return nil
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	contextWords := opts.ContextWords
	if contextWords <= 0 {
		contextWords = DefaultContextWords
	}

	bounds := boundaries(text)
	var chunks []Chunk
	start := 0
	bi := 0
	for start < len(text) {
		end := len(text)
		// furthest boundary that still fits
		next := -1
		for i := bi; i < len(bounds); i++ {
			if bounds[i] <= start {
				continue
			}
			if bounds[i]-start > maxBytes {
				break
			}
			next = i
		}
		if next >= 0 {
			end = bounds[next]
			bi = next + 1
		} else {
			// nothing fits: take the next boundary anyway to keep the
			// sentence whole
			for i := bi; i < len(bounds); i++ {
				if bounds[i] > start {
					end = bounds[i]
					bi = i + 1
					break
				}
			}
		}
		chunk := Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  text[start:end],
		}
		if len(chunks) > 0 {
			chunk.Trailing = TrailingContext(chunks[len(chunks)-1].Text, contextWords)
		}
		chunks = append(chunks, chunk)
		start = end
	}
	return chunks
}

// TrailingContext returns the last n words of text joined by single
// spaces.
func TrailingContext(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// noBreakAbbrevs mirrors the detector's honorific guard: a period after
// these does not start a new sentence.
var noBreakAbbrevs = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "prof": true,
}

// boundaries returns the byte offsets where a new sentence or paragraph
// starts. len(text) is always the final boundary.
func boundaries(text string) []int {
	var bounds []int
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch r {
		case '.', '!', '?', '…':
			if r == '.' && abbreviationDot(text, i) {
				i += size
				continue
			}
			j := i
			for j < len(text) {
				rr, ss := utf8.DecodeRuneInString(text[j:])
				if rr == '.' || rr == '!' || rr == '?' || rr == '…' {
					j += ss
					continue
				}
				break
			}
			for j < len(text) {
				rr, ss := utf8.DecodeRuneInString(text[j:])
				if rr == '"' || rr == '\'' || rr == ')' || rr == ']' || rr == '”' || rr == '’' {
					j += ss
					continue
				}
				break
			}
			hadSpace := false
			for j < len(text) {
				rr, ss := utf8.DecodeRuneInString(text[j:])
				if rr == ' ' || rr == '\t' || rr == '\n' || rr == '\r' {
					hadSpace = true
					j += ss
					continue
				}
				break
			}
			if hadSpace && j < len(text) {
				bounds = append(bounds, j)
			}
			i = j
			if j == len(text) {
				i = len(text)
			}
		case '\n':
			if strings.HasPrefix(text[i:], "\n\n") {
				j := i
				for j < len(text) && (text[j] == '\n' || text[j] == '\r') {
					j++
				}
				if j < len(text) {
					bounds = append(bounds, j)
				}
				i = j
				continue
			}
			i += size
		default:
			i += size
		}
	}
	bounds = append(bounds, len(text))
	return bounds
}

// abbreviationDot reports whether the period at i follows an honorific or
// a single-letter initial.
func abbreviationDot(text string, i int) bool {
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
