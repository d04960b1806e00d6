// Package segment assigns narrative spans to dialogue or narration and
// attributes speakers with quote and speech-verb heuristics. It is the
// offline segmenter and the fallback path when the classifier is
// unavailable; segments always tile their input text.
package segment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// speechVerbs matches the reporting verbs that anchor an attribution.
var speechVerbs = regexp.MustCompile(`\b(said|asked|replied|whispered|shouted|murmured|called|told|answered|cried|snapped|muttered|continued|added|demanded|grumbled|sighed)\b`)

// attributionWindow is how far before and after a quote the segmenter
// looks for a reporting verb and a name.
const attributionWindow = 80

// QuoteSpans returns the double-quoted regions of text, quote characters
// included, in document order. An unclosed quote is clamped to the end of
// its paragraph so downstream tiling never leaks across paragraphs.
func QuoteSpans(text string) []lint.Span {
	var spans []lint.Span
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '"' && r != '“' {
			i += size
			continue
		}
		start := i
		j := i + size
		end := -1
		for j < len(text) {
			rr, ss := utf8.DecodeRuneInString(text[j:])
			if rr == '"' || rr == '”' {
				end = j + ss
				break
			}
			if rr == '\n' && strings.HasPrefix(text[j:], "\n\n") {
				break
			}
			j += ss
		}
		if end < 0 {
			end = j
			if end <= start+size {
				i += size
				continue
			}
		}
		spans = append(spans, lint.Span{Start: start, End: end})
		i = end
	}
	return spans
}

// Segmenter tiles text into dialogue and narration segments.
type Segmenter struct {
	names    []string
	narrator string
}

// New builds a segmenter. names lists roster names and aliases used for
// attribution; narrator is the speaker assigned to narration spans.
func New(names []string, narrator string) *Segmenter {
	if narrator == "" {
		narrator = lint.SpeakerNarrator
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	// longer names first so "Chen Ming" wins over "Chen"
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return &Segmenter{names: sorted, narrator: narrator}
}

// Segment tiles text into ordered dialogue/narration segments. Narration
// goes to the narrator at medium confidence; dialogue is attributed
// through reporting-verb adjacency and drops to SpeakerUnknown at low
// confidence when no roster name anchors it.
func (s *Segmenter) Segment(text string) []lint.Segment {
	if len(text) == 0 {
		return nil
	}
	quotes := QuoteSpans(text)
	var segs []lint.Segment
	pos := 0
	for _, q := range quotes {
		if q.Start > pos {
			segs = append(segs, s.narration(text, lint.Span{Start: pos, End: q.Start}))
		}
		segs = append(segs, s.dialogue(text, q))
		pos = q.End
	}
	if pos < len(text) {
		segs = append(segs, s.narration(text, lint.Span{Start: pos, End: len(text)}))
	}
	return segs
}

// Fallback tiles text the same way but marks every segment for review at
// the lowest confidence. This is the degraded output used when the
// classifier cannot judge a chunk.
func (s *Segmenter) Fallback(text string) []lint.Segment {
	segs := s.Segment(text)
	for i := range segs {
		segs[i].Confidence = lint.ConfidenceLow
		segs[i].NeedsReview = true
	}
	return segs
}

func (s *Segmenter) narration(text string, span lint.Span) lint.Segment {
	return lint.Segment{
		Text:       text[span.Start:span.End],
		Type:       lint.SegmentNarration,
		Speaker:    s.narrator,
		Confidence: lint.ConfidenceMedium,
		Span:       span,
	}
}

func (s *Segmenter) dialogue(text string, span lint.Span) lint.Segment {
	speaker, conf := s.attribute(text, span)
	return lint.Segment{
		Text:        text[span.Start:span.End],
		Type:        lint.SegmentDialogue,
		Speaker:     speaker,
		Confidence:  conf,
		Span:        span,
		NeedsReview: speaker == lint.SpeakerUnknown,
	}
}

// attribute looks for a reporting verb next to the quote and a roster name
// in the same window. Verb without a name, or neither, yields
// SpeakerUnknown at low confidence.
func (s *Segmenter) attribute(text string, quote lint.Span) (string, lint.SegmentConfidence) {
	after := window(text, quote.End, attributionWindow, true)
	if speechVerbs.MatchString(after) {
		if name := s.findName(after); name != "" {
			return name, lint.ConfidenceMedium
		}
	}
	before := window(text, quote.Start, attributionWindow, false)
	if speechVerbs.MatchString(before) {
		if name := s.findName(before); name != "" {
			return name, lint.ConfidenceMedium
		}
	}
	return lint.SpeakerUnknown, lint.ConfidenceLow
}

// window slices up to n bytes after (or before) a position, stopping at a
// paragraph break.
func window(text string, pos, n int, forward bool) string {
	if forward {
		end := pos + n
		if end > len(text) {
			end = len(text)
		}
		w := text[pos:end]
		if cut := strings.Index(w, "\n\n"); cut >= 0 {
			w = w[:cut]
		}
		return w
	}
	start := pos - n
	if start < 0 {
		start = 0
	}
	w := text[start:pos]
	if cut := strings.LastIndex(w, "\n\n"); cut >= 0 {
		w = w[cut+2:]
	}
	return w
}

// findName returns the first roster name present in the window, preferring
// longer names.
func (s *Segmenter) findName(w string) string {
	for _, name := range s.names {
		if containsWord(w, name) {
			return name
		}
	}
	return ""
}

// containsWord reports whether name occurs in w on word boundaries.
func containsWord(w, name string) bool {
	idx := 0
	for {
		i := strings.Index(w[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)
		beforeOK := start == 0 || !isLetterAt(w, start-1)
		afterOK := end >= len(w) || !isLetterByte(w[end:])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetterAt(s string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(s[:i+1])
	return isLetter(r)
}

func isLetterByte(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return isLetter(r)
}

func isLetter(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= utf8.RuneSelf
}

// Verify checks that segments tile [0, length) exactly: ordered,
// contiguous, no gaps or overlaps. An empty segment list is valid only for
// empty text.
func Verify(segs []lint.Segment, length int) error {
	if len(segs) == 0 {
		if length == 0 {
			return nil
		}
		return fmt.Errorf("no segments for %d bytes of text", length)
	}
	if segs[0].Span.Start != 0 {
		return fmt.Errorf("first segment starts at %d, not 0", segs[0].Span.Start)
	}
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1].Span, segs[i].Span
		if cur.Start != prev.End {
			if cur.Start > prev.End {
				return fmt.Errorf("gap between segments at %d..%d", prev.End, cur.Start)
			}
			return fmt.Errorf("overlap between segments at %d..%d", cur.Start, prev.End)
		}
	}
	if last := segs[len(segs)-1].Span.End; last != length {
		return fmt.Errorf("segments end at %d, text has %d bytes", last, length)
	}
	for i, seg := range segs {
		if seg.Span.Len() <= 0 {
			return fmt.Errorf("segment %d has non-positive length", i)
		}
	}
	return nil
}

// Shift offsets segment spans by delta, mapping chunk-relative segments
// into chapter coordinates.
func Shift(segs []lint.Segment, delta int) []lint.Segment {
	out := make([]lint.Segment, len(segs))
	for i, seg := range segs {
		seg.Span.Start += delta
		seg.Span.End += delta
		out[i] = seg
	}
	return out
}

// Merge joins adjacent segments with the same type and speaker, keeping
// the weaker confidence and any review flag.
func Merge(segs []lint.Segment) []lint.Segment {
	if len(segs) < 2 {
		return segs
	}
	out := make([]lint.Segment, 0, len(segs))
	out = append(out, segs[0])
	for _, seg := range segs[1:] {
		last := &out[len(out)-1]
		if seg.Type == last.Type && seg.Speaker == last.Speaker && seg.Span.Start == last.Span.End {
			last.Span.End = seg.Span.End
			last.Text += seg.Text
			if seg.Confidence < last.Confidence {
				last.Confidence = seg.Confidence
			}
			last.NeedsReview = last.NeedsReview || seg.NeedsReview
			continue
		}
		out = append(out, seg)
	}
	return out
}
