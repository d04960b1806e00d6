// Package pipeline fans chapters out to worker tasks and folds their
// results back in document order. Workers share only the entity cache
// and the rate limiter; a failing classifier degrades a chapter's
// results, never the run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/classify"
	"github.com/mtl-tools/mtlint/internal/detect"
	"github.com/mtl-tools/mtlint/internal/gate"
	"github.com/mtl-tools/mtlint/internal/ingest"
	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/report"
	"github.com/mtl-tools/mtlint/internal/roster"
	"github.com/mtl-tools/mtlint/internal/segment"
)

// Hooks surface per-chapter progress. Nil funcs are skipped.
type Hooks struct {
	ChapterStart func(title string)
	ChapterDone  func(title string)
	Warn         func(format string, args ...any)
}

func (h Hooks) start(title string) {
	if h.ChapterStart != nil {
		h.ChapterStart(title)
	}
}

func (h Hooks) done(title string) {
	if h.ChapterDone != nil {
		h.ChapterDone(title)
	}
}

func (h Hooks) warn(format string, args ...any) {
	if h.Warn != nil {
		h.Warn(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// Options configure a Runner. Workers defaults to the CPU count.
type Options struct {
	Workers int
	Hooks   Hooks
}

// Runner runs the detection pass over a volume. A nil classifier means
// offline mode: pattern detection plus the heuristic segmenter only.
type Runner struct {
	cat        *catalog.Catalog
	scanner    *detect.Scanner
	classifier *classify.Classifier
	seg        *segment.Segmenter
	workers    int
	hooks      Hooks
	repOpts    report.Options
}

// New builds a Runner over a loaded catalog and roster.
func New(cat *catalog.Catalog, ros *roster.Roster, classifier *classify.Classifier, opts Options) *Runner {
	if ros == nil {
		ros = roster.Empty()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		cat:        cat,
		scanner:    detect.NewScanner(cat, ros.Names()),
		classifier: classifier,
		seg:        segment.New(ros.Names(), ros.Narrator()),
		workers:    workers,
		hooks:      opts.Hooks,
		repOpts:    ReportOptions(cat),
	}
}

// ReportOptions maps the catalog's hard-cap rules to the kinds the
// aggregator counts as violations.
func ReportOptions(cat *catalog.Catalog) report.Options {
	var opts report.Options
	for i := range cat.Rules {
		r := &cat.Rules[i]
		if r.Trigger != catalog.TriggerStructural || r.Check != catalog.CheckSentenceLength {
			continue
		}
		switch r.AppliesTo {
		case catalog.AppliesDialogue:
			opts.DialogueCapKind = r.Kind
		case catalog.AppliesNarration:
			opts.NarrationCapKind = r.Kind
		}
	}
	return opts
}

// candidateKinds lists the catalog kinds that feed the entity resolver.
func (r *Runner) candidateKinds() map[string]bool {
	kinds := make(map[string]bool)
	for i := range r.cat.Rules {
		rule := &r.cat.Rules[i]
		if rule.Trigger == catalog.TriggerStructural && rule.Check == catalog.CheckProperNounCandidate {
			kinds[rule.Kind] = true
		}
	}
	return kinds
}

// ChapterResult is one chapter's detection output.
type ChapterResult struct {
	Chapter  ingest.Chapter
	Issues   []lint.Issue
	Segments []lint.Segment
	Entities []lint.EntityReference
	Stats    report.ChapterStats

	// Hash fingerprints the chapter text for write-conflict detection
	// when the gate later applies fixes.
	Hash string

	// Degraded marks a chapter where the classifier fell back to
	// pattern-based judgments.
	Degraded bool
}

// Run processes every chapter of the volume on up to Workers concurrent
// tasks and returns results in chapter order. Only context cancellation
// or ingestion-level failure aborts the run.
func (r *Runner) Run(ctx context.Context, vol *ingest.Volume) ([]ChapterResult, error) {
	results := make([]ChapterResult, len(vol.Chapters))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, ch := range vol.Chapters {
		g.Go(func() error {
			r.hooks.start(ch.Title)
			res, err := r.runChapter(ctx, ch)
			if err != nil {
				return fmt.Errorf("chapter %s: %w", ch.Path, err)
			}
			results[i] = *res
			r.hooks.done(ch.Title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runChapter(ctx context.Context, ch ingest.Chapter) (*ChapterResult, error) {
	res := &ChapterResult{
		Chapter: ch,
		Hash:    gate.HashContent([]byte(ch.Text)),
	}

	issues := r.scanner.ScanAll(ch.Path, ch.Text)

	if r.classifier == nil {
		res.Issues = issues
		res.Segments = segment.Merge(r.seg.Segment(ch.Text))
	} else {
		candidates, rest := splitCandidates(issues, r.candidateKinds())

		resolved, err := r.classifier.Resolve(ctx, ch.Text, candidates)
		if err != nil {
			return nil, err
		}
		if resolved.Degraded {
			res.Degraded = true
			r.hooks.warn("%s: entity resolution degraded to pattern output", ch.Path)
		}
		res.Issues = append(rest, resolved.Issues...)
		res.Entities = resolved.Entities

		segRes, err := r.classifier.SegmentChapter(ctx, ch.Text)
		if err != nil {
			return nil, err
		}
		if segRes.Fallbacks > 0 {
			res.Degraded = true
			r.hooks.warn("%s: %d of %d chunks segmented by fallback", ch.Path, segRes.Fallbacks, segRes.Chunks)
		}
		res.Segments = segRes.Segments
	}

	sort.SliceStable(res.Issues, func(i, j int) bool {
		return res.Issues[i].Span.Start < res.Issues[j].Span.Start
	})

	if err := segment.Verify(res.Segments, len(ch.Text)); err != nil {
		return nil, fmt.Errorf("segment tiling: %w", err)
	}

	res.Stats = report.Compute(ch.Index, ch.Title, ch.Path, ch.Text,
		res.Issues, nil, res.Segments, res.Entities, r.repOpts)
	return res, nil
}

// splitCandidates separates entity candidate issues from the rest.
func splitCandidates(issues []lint.Issue, kinds map[string]bool) (candidates, rest []lint.Issue) {
	for _, iss := range issues {
		if kinds[iss.Kind] {
			candidates = append(candidates, iss)
		} else {
			rest = append(rest, iss)
		}
	}
	return candidates, rest
}
