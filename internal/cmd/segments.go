package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/ingest"
	"github.com/mtl-tools/mtlint/internal/lint"
	"github.com/mtl-tools/mtlint/internal/segment"
	"github.com/mtl-tools/mtlint/internal/ui"
)

var segmentsPrint bool

var segmentsCmd = &cobra.Command{
	Use:   "segments <file>",
	Short: "Browse a chapter's dialogue/narration segmentation",
	Long: `Segment one chapter into attributed dialogue and narration spans and
browse the result interactively. Without --deep the heuristic
segmenter runs; with --deep the classification service attributes
speakers.

Examples:
  mtlint segments chapters/ch-001.txt
  mtlint segments --deep --roster roster.yaml chapters/ch-001.txt
  mtlint segments --print chapters/ch-001.txt`,
	Args:         cobra.ExactArgs(1),
	RunE:         runSegments,
	SilenceUsage: true,
}

func init() {
	addClassifierFlags(segmentsCmd)
	segmentsCmd.Flags().BoolVar(&segmentsPrint, "print", false, "Print segments instead of browsing")
	RootCmd.AddCommand(segmentsCmd)
}

func runSegments(cmd *cobra.Command, args []string) error {
	ros, err := loadRosterFlag()
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	ch, err := ingest.LoadChapter(args[0], 0)
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(ros)
	if err != nil {
		return err
	}

	var segs []lint.Segment
	if classifier == nil {
		seg := segment.New(ros.Names(), ros.Narrator())
		segs = segment.Merge(seg.Segment(ch.Text))
	} else {
		res, err := classifier.SegmentChapter(cmd.Context(), ch.Text)
		if err != nil {
			return err
		}
		if res.Fallbacks > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d chunks segmented by fallback\n",
				res.Fallbacks, res.Chunks)
		}
		segs = res.Segments
		if err := saveCache(classifier); err != nil {
			return err
		}
	}

	u := GetUI()
	if segmentsPrint || !u.IsInteractive() {
		printSegments(u, ch, segs)
		return nil
	}

	m := ui.NewSegmentsModel(ch.Title, segs)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func printSegments(u *ui.UI, ch ingest.Chapter, segs []lint.Segment) {
	s := u.Styles
	fmt.Printf("%s  %d segments\n\n", s.Header.Render(ch.Title), len(segs))
	for _, seg := range segs {
		marker := "narration"
		style := s.Narration
		if seg.Type == lint.SegmentDialogue {
			marker = "dialogue"
			style = s.Dialogue
		}
		review := ""
		if seg.NeedsReview {
			review = s.Review.Render(" (review)")
		}
		fmt.Printf("%6d..%-6d %-9s %s%s\n", seg.Span.Start, seg.Span.End,
			marker, s.Speaker.Render(seg.Speaker), review)
		fmt.Printf("               %s\n", style.Render(snippetLine(seg.Text)))
	}
}

// snippetLine flattens segment text to one truncated line.
func snippetLine(text string) string {
	flat := make([]rune, 0, 80)
	for _, r := range text {
		if r == '\n' || r == '\t' {
			r = ' '
		}
		flat = append(flat, r)
		if len(flat) >= 80 {
			return string(flat) + "..."
		}
	}
	return string(flat)
}
