// Package report aggregates issues, fixes, segments, and entity rulings
// into per-chapter statistics and a merged volume report. Both renderers
// draw from this one model; nothing is counted twice because chapter
// chunks tile and every issue folds in exactly once.
package report

import (
	"sort"

	"github.com/mtl-tools/mtlint/internal/detect"
	"github.com/mtl-tools/mtlint/internal/lint"
)

// Hard-cap kinds from the default catalog. A custom catalog can rename
// them through Options.
const (
	DefaultDialogueCapKind  = "structure/dialogue-length"
	DefaultNarrationCapKind = "structure/narration-length"
)

// Options name the issue kinds that count as hard-cap violations.
type Options struct {
	DialogueCapKind  string
	NarrationCapKind string
}

func (o Options) withDefaults() Options {
	if o.DialogueCapKind == "" {
		o.DialogueCapKind = DefaultDialogueCapKind
	}
	if o.NarrationCapKind == "" {
		o.NarrationCapKind = DefaultNarrationCapKind
	}
	return o
}

// Counts tallies issues by kind and severity.
type Counts struct {
	Total      int
	ByKind     map[string]int
	BySeverity map[lint.Severity]int
}

func newCounts() Counts {
	return Counts{
		ByKind:     make(map[string]int),
		BySeverity: make(map[lint.Severity]int),
	}
}

func (c *Counts) add(iss lint.Issue) {
	c.Total++
	c.ByKind[iss.Kind]++
	c.BySeverity[iss.Severity]++
}

func (c *Counts) merge(other Counts) {
	c.Total += other.Total
	for k, n := range other.ByKind {
		c.ByKind[k] += n
	}
	for s, n := range other.BySeverity {
		c.BySeverity[s] += n
	}
}

// Kinds returns the counted kinds sorted by name.
func (c Counts) Kinds() []string {
	kinds := make([]string, 0, len(c.ByKind))
	for k := range c.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Scores are the named compliance fractions, each in [0,1].
type Scores struct {
	// DialogueCap is the fraction of dialogue sentences under the cap
	DialogueCap float64

	// NarrationCap is the fraction of narration sentences under the cap
	NarrationCap float64

	// EntityAccuracy is the fraction of resolved entity references
	// correctly left un-obfuscated
	EntityAccuracy float64

	// Density is issues per thousand words
	Density float64
}

// ChapterStats is the aggregate for one chapter.
type ChapterStats struct {
	Index int
	Title string
	File  string
	Words int

	Counts Counts
	Scores Scores

	FixesApplied   int
	ReviewRequired int

	DialogueSentences  int
	NarrationSentences int
	DialogueOverCap    int
	NarrationOverCap   int

	EntitiesResolved   int
	EntitiesObfuscated int

	Segments           int
	SegmentsNeedReview int

	Issues []lint.Issue
	Fixes  []lint.FixRecord
}

// Compute folds one chapter's streams into its stats. fixed lists the
// applied fix records; issues must be the surviving (unfixed) findings.
func Compute(index int, title, file, text string, issues []lint.Issue, fixed []lint.FixRecord, segs []lint.Segment, ents []lint.EntityReference, opts Options) ChapterStats {
	opts = opts.withDefaults()
	cs := ChapterStats{
		Index:  index,
		Title:  title,
		File:   file,
		Words:  detect.WordCount(text),
		Counts: newCounts(),
		Issues: issues,
		Fixes:  fixed,
	}
	cs.DialogueSentences, cs.NarrationSentences = detect.SentenceCounts(text)

	for _, seg := range segs {
		cs.Segments++
		if seg.NeedsReview {
			cs.SegmentsNeedReview++
		}
	}
	for _, ref := range ents {
		if ref.Verification == lint.VerifiedNone {
			continue
		}
		cs.EntitiesResolved++
		if ref.Obfuscated {
			cs.EntitiesObfuscated++
		}
	}

	cs.Recompute(opts)
	return cs
}

// Recompute rebuilds the tallies and scores derived from the issue and
// fix streams, keeping the stored denominators. The audit store uses it
// when rehydrating a persisted run.
func (cs *ChapterStats) Recompute(opts Options) {
	opts = opts.withDefaults()
	cs.Counts = newCounts()
	cs.DialogueOverCap = 0
	cs.NarrationOverCap = 0
	for _, iss := range cs.Issues {
		cs.Counts.add(iss)
		switch iss.Kind {
		case opts.DialogueCapKind:
			cs.DialogueOverCap++
		case opts.NarrationCapKind:
			cs.NarrationOverCap++
		}
	}
	cs.FixesApplied = len(cs.Fixes)
	cs.ReviewRequired = len(cs.Issues)
	cs.Scores = scores(cs)
}

// scores derives the compliance fractions from the raw tallies. An empty
// denominator scores as full compliance: no sentences means none over
// the cap.
func scores(cs *ChapterStats) Scores {
	s := Scores{DialogueCap: 1, NarrationCap: 1, EntityAccuracy: 1}
	if cs.DialogueSentences > 0 {
		s.DialogueCap = 1 - float64(cs.DialogueOverCap)/float64(cs.DialogueSentences)
	}
	if cs.NarrationSentences > 0 {
		s.NarrationCap = 1 - float64(cs.NarrationOverCap)/float64(cs.NarrationSentences)
	}
	if cs.EntitiesResolved > 0 {
		s.EntityAccuracy = 1 - float64(cs.EntitiesObfuscated)/float64(cs.EntitiesResolved)
	}
	if cs.Words > 0 {
		s.Density = float64(cs.Counts.Total) / float64(cs.Words) * 1000
	}
	return s
}

// Reporter renders a volume report to its output.
type Reporter interface {
	Report(v *Volume) error
}

// Volume merges chapter stats incrementally into a volume-level report.
type Volume struct {
	Path     string
	Chapters []ChapterStats
}

// NewVolume starts an empty volume report.
func NewVolume(path string) *Volume {
	return &Volume{Path: path}
}

// Add folds one chapter in. Chapters may arrive out of order; Totals and
// the renderers sort by index.
func (v *Volume) Add(cs ChapterStats) {
	v.Chapters = append(v.Chapters, cs)
	sort.Slice(v.Chapters, func(i, j int) bool { return v.Chapters[i].Index < v.Chapters[j].Index })
}

// Totals is the volume-level rollup.
type Totals struct {
	Chapters       int
	Words          int
	Counts         Counts
	Scores         Scores
	FixesApplied   int
	ReviewRequired int
	Segments       int
	NeedReview     int
}

// Totals merges every chapter into the volume rollup. Scores recompute
// from the summed denominators rather than averaging chapter fractions,
// so a short chapter cannot outweigh a long one.
func (v *Volume) Totals() Totals {
	t := Totals{Chapters: len(v.Chapters)}
	sum := ChapterStats{Counts: newCounts()}
	for _, cs := range v.Chapters {
		sum.Words += cs.Words
		sum.Counts.merge(cs.Counts)
		sum.DialogueSentences += cs.DialogueSentences
		sum.NarrationSentences += cs.NarrationSentences
		sum.DialogueOverCap += cs.DialogueOverCap
		sum.NarrationOverCap += cs.NarrationOverCap
		sum.EntitiesResolved += cs.EntitiesResolved
		sum.EntitiesObfuscated += cs.EntitiesObfuscated
		t.FixesApplied += cs.FixesApplied
		t.ReviewRequired += cs.ReviewRequired
		t.Segments += cs.Segments
		t.NeedReview += cs.SegmentsNeedReview
	}
	t.Words = sum.Words
	t.Counts = sum.Counts
	t.Scores = scores(&sum)
	return t
}

// Issues returns every surviving issue across the volume, chapter order
// first, then document order.
func (v *Volume) Issues() []lint.Issue {
	var out []lint.Issue
	for _, cs := range v.Chapters {
		out = append(out, cs.Issues...)
	}
	return out
}

// AllFixes returns every applied fix across the volume in chapter order.
func (v *Volume) AllFixes() []lint.FixRecord {
	var out []lint.FixRecord
	for _, cs := range v.Chapters {
		out = append(out, cs.Fixes...)
	}
	return out
}
