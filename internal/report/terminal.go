package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/ui"
)

// TerminalReporter renders a volume report for humans: issues grouped by
// file, then the per-chapter scores and the volume rollup.
type TerminalReporter struct {
	w io.Writer
	u *ui.UI
}

// NewTerminalReporter creates a terminal reporter writing to w with the
// UI's styles.
func NewTerminalReporter(w io.Writer, u *ui.UI) *TerminalReporter {
	return &TerminalReporter{w: w, u: u}
}

// Report renders the volume.
func (r *TerminalReporter) Report(v *Volume) error {
	s := r.u.Styles
	issues := v.Issues()

	if len(issues) == 0 && len(v.AllFixes()) == 0 {
		fmt.Fprintln(r.w, s.Success.Render(s.IconSuccess+" No issues found"))
		return nil
	}

	byFile := make(map[string][]lint.Issue)
	for _, iss := range issues {
		byFile[iss.File] = append(byFile[iss.File], iss)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		fileIssues := byFile[file]
		sort.Slice(fileIssues, func(i, j int) bool {
			return fileIssues[i].Span.Start < fileIssues[j].Span.Start
		})

		fmt.Fprintln(r.w)
		fmt.Fprintf(r.w, "%s\n", s.Header.Render(filepath.Base(file)))
		fmt.Fprintf(r.w, "  %s\n", s.Path.Render(file))
		for _, iss := range fileIssues {
			r.printIssue(iss)
		}
	}

	r.printChapters(v)
	r.printTotals(v)
	return nil
}

func (r *TerminalReporter) printIssue(iss lint.Issue) {
	s := r.u.Styles
	style, icon := s.SeverityStyle(iss.Severity), s.SeverityIcon(iss.Severity)

	lineInfo := ""
	if iss.Line > 0 {
		lineInfo = fmt.Sprintf(":%d", iss.Line)
	}
	fmt.Fprintf(r.w, "  %s %s%s %s\n",
		style.Render(icon),
		filepath.Base(iss.File), lineInfo,
		s.Kind.Render(fmt.Sprintf("[%s %.2f]", iss.Kind, iss.Confidence)))

	if iss.Suggested != "" {
		fmt.Fprintf(r.w, "    %s -> %s\n", snippet(iss.Original), snippet(iss.Suggested))
	} else {
		fmt.Fprintf(r.w, "    %s\n", snippet(iss.Original))
	}
	if iss.Reasoning != "" {
		fmt.Fprintf(r.w, "    %s\n", s.Subheader.Render(iss.Reasoning))
	}
}

func (r *TerminalReporter) printChapters(v *Volume) {
	s := r.u.Styles
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, s.Separator.Render("─────────────────────────────────────"))
	for _, cs := range v.Chapters {
		name := cs.Title
		if name == "" {
			name = filepath.Base(cs.File)
		}
		fmt.Fprintf(r.w, "%s  %d issues, %d fixed, %.1f/1000 words\n",
			s.Header.Render(fmt.Sprintf("Chapter %d: %s", cs.Index+1, name)),
			cs.Counts.Total, cs.FixesApplied, cs.Scores.Density)
		fmt.Fprintf(r.w, "  dialogue cap %.0f%%  narration cap %.0f%%  entity accuracy %.0f%%\n",
			cs.Scores.DialogueCap*100, cs.Scores.NarrationCap*100, cs.Scores.EntityAccuracy*100)
	}
}

func (r *TerminalReporter) printTotals(v *Volume) {
	s := r.u.Styles
	t := v.Totals()

	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, s.Separator.Render("─────────────────────────────────────"))
	fmt.Fprintf(r.w, "Found %d issues across %d chapters (%d words): ",
		t.Counts.Total, t.Chapters, t.Words)

	order := []lint.Severity{lint.SeverityCritical, lint.SeverityHigh, lint.SeverityMedium, lint.SeverityLow}
	first := true
	for _, sev := range order {
		n := t.Counts.BySeverity[sev]
		if n == 0 {
			continue
		}
		if !first {
			fmt.Fprint(r.w, ", ")
		}
		fmt.Fprint(r.w, s.SeverityStyle(sev).Render(fmt.Sprintf("%d %s", n, sev)))
		first = false
	}
	if first {
		fmt.Fprint(r.w, "none")
	}
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "%d fixed automatically, %d need review\n", t.FixesApplied, t.ReviewRequired)
}

// snippet truncates long matched text for single-line display.
func snippet(text string) string {
	const max = 70
	if len(text) <= max {
		return text
	}
	return text[:max-3] + "..."
}
