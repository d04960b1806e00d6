package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// JSONReporter renders a volume report as machine-readable JSON.
type JSONReporter struct {
	w io.Writer
}

// NewJSONReporter creates a JSON reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

// JSONOutput is the top-level JSON document.
type JSONOutput struct {
	Path     string        `json:"path,omitempty"`
	Chapters []JSONChapter `json:"chapters"`
	Totals   JSONTotals    `json:"totals"`
}

// JSONChapter is one chapter's aggregate plus its issue and fix records.
type JSONChapter struct {
	Index  int         `json:"index"`
	Title  string      `json:"title,omitempty"`
	File   string      `json:"file"`
	Words  int         `json:"words"`
	Counts JSONCounts  `json:"counts"`
	Scores JSONScores  `json:"scores"`
	Issues []JSONIssue `json:"issues"`
	Fixes  []JSONFix   `json:"fixes,omitempty"`
}

// JSONCounts groups issue tallies.
type JSONCounts struct {
	Total          int            `json:"total"`
	ByKind         map[string]int `json:"byKind"`
	BySeverity     map[string]int `json:"bySeverity"`
	FixesApplied   int            `json:"fixesApplied"`
	ReviewRequired int            `json:"reviewRequired"`
}

// JSONScores carries the named compliance fractions.
type JSONScores struct {
	DialogueCap    float64 `json:"dialogueCapCompliance"`
	NarrationCap   float64 `json:"narrationCapCompliance"`
	EntityAccuracy float64 `json:"entityAccuracy"`
	Density        float64 `json:"issuesPerThousandWords"`
}

// JSONIssue is one issue record with every Issue field.
type JSONIssue struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
	File       string  `json:"file"`
	Line       int     `json:"line,omitempty"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Original   string  `json:"original"`
	Suggested  string  `json:"suggested,omitempty"`
	Source     string  `json:"source"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// JSONFix is one applied-correction audit record.
type JSONFix struct {
	IssueID    string    `json:"issueId"`
	File       string    `json:"file"`
	Original   string    `json:"original"`
	Fixed      string    `json:"fixed"`
	Confidence float64   `json:"confidence"`
	AppliedAt  time.Time `json:"appliedAt"`
}

// JSONTotals is the volume-level rollup.
type JSONTotals struct {
	Chapters       int        `json:"chapters"`
	Words          int        `json:"words"`
	Counts         JSONCounts `json:"counts"`
	Scores         JSONScores `json:"scores"`
	Segments       int        `json:"segments"`
	SegmentsReview int        `json:"segmentsNeedingReview"`
}

// Report encodes the volume as indented JSON.
func (r *JSONReporter) Report(v *Volume) error {
	out := JSONOutput{
		Path:     v.Path,
		Chapters: make([]JSONChapter, 0, len(v.Chapters)),
	}
	for _, cs := range v.Chapters {
		out.Chapters = append(out.Chapters, jsonChapter(cs))
	}

	t := v.Totals()
	out.Totals = JSONTotals{
		Chapters: t.Chapters,
		Words:    t.Words,
		Counts: JSONCounts{
			Total:          t.Counts.Total,
			ByKind:         t.Counts.ByKind,
			BySeverity:     severityNames(t.Counts.BySeverity),
			FixesApplied:   t.FixesApplied,
			ReviewRequired: t.ReviewRequired,
		},
		Scores:         jsonScores(t.Scores),
		Segments:       t.Segments,
		SegmentsReview: t.NeedReview,
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func jsonChapter(cs ChapterStats) JSONChapter {
	jc := JSONChapter{
		Index: cs.Index,
		Title: cs.Title,
		File:  cs.File,
		Words: cs.Words,
		Counts: JSONCounts{
			Total:          cs.Counts.Total,
			ByKind:         cs.Counts.ByKind,
			BySeverity:     severityNames(cs.Counts.BySeverity),
			FixesApplied:   cs.FixesApplied,
			ReviewRequired: cs.ReviewRequired,
		},
		Scores: jsonScores(cs.Scores),
		Issues: make([]JSONIssue, 0, len(cs.Issues)),
	}
	for _, iss := range cs.Issues {
		jc.Issues = append(jc.Issues, JSONIssue{
			ID:         iss.ID,
			Kind:       iss.Kind,
			Severity:   iss.Severity.String(),
			Confidence: iss.Confidence,
			File:       iss.File,
			Line:       iss.Line,
			Start:      iss.Span.Start,
			End:        iss.Span.End,
			Original:   iss.Original,
			Suggested:  iss.Suggested,
			Source:     string(iss.Source),
			Reasoning:  iss.Reasoning,
		})
	}
	for _, fix := range cs.Fixes {
		jc.Fixes = append(jc.Fixes, JSONFix{
			IssueID:    fix.IssueID,
			File:       fix.File,
			Original:   fix.Original,
			Fixed:      fix.Fixed,
			Confidence: fix.Confidence,
			AppliedAt:  fix.AppliedAt,
		})
	}
	return jc
}

func jsonScores(s Scores) JSONScores {
	return JSONScores{
		DialogueCap:    s.DialogueCap,
		NarrationCap:   s.NarrationCap,
		EntityAccuracy: s.EntityAccuracy,
		Density:        s.Density,
	}
}

func severityNames(m map[lint.Severity]int) map[string]int {
	out := make(map[string]int, len(m))
	for sev, n := range m {
		out[sev.String()] = n
	}
	return out
}
