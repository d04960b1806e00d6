package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/gate"
	"github.com/mtl-tools/mtlint/internal/ingest"
	"github.com/mtl-tools/mtlint/internal/pipeline"
	"github.com/mtl-tools/mtlint/internal/report"
	"github.com/mtl-tools/mtlint/internal/ui"
)

var (
	fixThreshold float64
	fixDryRun    bool
	fixBackupDir string
	fixWorkers   int
	fixDB        string
)

var fixCmd = &cobra.Command{
	Use:   "fix [path]",
	Short: "Apply high-confidence fixes in place",
	Long: `Scan chapters and substitute corrections whose confidence clears
the threshold. Everything below the threshold is queued for review
and left untouched. Each file is snapshotted before its first fix;
"mtlint rollback" restores the originals bit for bit.

Examples:
  mtlint fix --dry-run chapters/
  mtlint fix --deep --threshold 0.98 chapters/
  mtlint fix --backup-dir .backups chapters/`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runFix,
	SilenceUsage: true,
}

func init() {
	addClassifierFlags(fixCmd)
	fixCmd.Flags().Float64Var(&fixThreshold, "threshold", 0, "Auto-fix confidence threshold (default: catalog threshold)")
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Report what would change without writing")
	fixCmd.Flags().StringVar(&fixBackupDir, "backup-dir", ".mtlint-backup", "Directory for pre-fix snapshots")
	fixCmd.Flags().IntVar(&fixWorkers, "workers", 0, "Concurrent chapter workers (default: CPU count)")
	fixCmd.Flags().StringVar(&fixDB, "db", "", "Record the run in a sqlite database")
	RootCmd.AddCommand(fixCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	u := GetUI()

	progress := u.StartProgress()
	defer func() {
		if progress != nil {
			progress.Done(nil)
		}
	}()

	if progress != nil {
		progress.SetStage(ui.StageLoadCatalog)
	}

	cat, err := loadCatalogFlag()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	ros, err := loadRosterFlag()
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	threshold := fixThreshold
	if threshold <= 0 {
		threshold = cat.Threshold
	}

	if progress != nil {
		progress.SetStage(ui.StageIngest)
	}

	vol, err := ingest.LoadVolume(absPath)
	if err != nil {
		return fmt.Errorf("failed to read chapters: %w", err)
	}

	classifier, err := buildClassifier(ros)
	if err != nil {
		return err
	}

	if progress != nil {
		progress.SetStage(ui.StageAnalyze)
		progress.SetChapterCount(len(vol.Chapters))
	}

	runner := pipeline.New(cat, ros, classifier, pipeline.Options{
		Workers: fixWorkers,
		Hooks: pipeline.Hooks{
			ChapterStart: func(title string) {
				if progress != nil {
					progress.ChapterStart(title)
				}
			},
			ChapterDone: func(string) {
				if progress != nil {
					progress.ChapterDone()
				}
			},
			Warn: warnf,
		},
	})

	started := time.Now()
	results, err := runner.Run(cmd.Context(), vol)
	if err != nil {
		return err
	}

	if err := saveCache(classifier); err != nil {
		return err
	}

	if progress != nil {
		progress.SetStage(ui.StageFix)
	}

	runID := uuid.New().String()
	var backups *gate.BackupStore
	if !fixDryRun {
		backups, err = gate.NewBackupStore(fixBackupDir, runID)
		if err != nil {
			return err
		}
	}
	fixer := gate.New(backups, gate.Options{DryRun: fixDryRun, Threshold: threshold})

	repOpts := pipeline.ReportOptions(cat)
	repVol := report.NewVolume(absPath)
	var conflicts int
	for _, res := range results {
		ch := res.Chapter

		if !ch.Writable {
			// Extracted formats cannot map spans back to source bytes.
			if buckets := gate.Partition(res.Issues, threshold); len(buckets.AutoFixable) > 0 {
				warnf("%s: %d fixable issues skipped (read-only format)", ch.Path, len(buckets.AutoFixable))
			}
			repVol.Add(res.Stats)
			continue
		}

		fr, err := fixer.Apply(ch.Path, res.Issues, res.Hash)
		if errors.Is(err, gate.ErrWriteConflict) {
			warnf("%s: file changed since it was read, no fixes applied", ch.Path)
			conflicts++
			repVol.Add(res.Stats)
			continue
		}
		if err != nil {
			return fmt.Errorf("fix %s: %w", ch.Path, err)
		}

		repVol.Add(report.Compute(ch.Index, ch.Title, ch.Path, ch.Text,
			fr.Review, fr.Records, res.Segments, res.Entities, repOpts))
	}

	if fixDB != "" {
		mode := "fix"
		if fixDryRun {
			mode = "fix-dry-run"
		}
		if err := recordRun(cmd, fixDB, absPath, mode, threshold, started, repVol); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	if progress != nil {
		progress.Done(nil)
		progress = nil
	}

	if err := renderVolume(repVol); err != nil {
		return err
	}

	if format != "json" {
		printFixSummary(repVol, backups, conflicts)
	}
	return nil
}

func printFixSummary(v *report.Volume, backups *gate.BackupStore, conflicts int) {
	s := GetUI().Styles
	t := v.Totals()

	fmt.Println()
	if fixDryRun {
		fmt.Printf("%s %d fixes would be applied, %d issues need review\n",
			s.IconSuccess, t.FixesApplied, t.ReviewRequired)
		return
	}
	fmt.Println(s.Success.Render(fmt.Sprintf("%s %d fixes applied, %d issues need review",
		s.IconSuccess, t.FixesApplied, t.ReviewRequired)))
	if conflicts > 0 {
		fmt.Printf("%s %d files skipped due to write conflicts\n", s.IconWarning, conflicts)
	}
	if backups != nil && backups.Len() > 0 {
		fmt.Printf("  backups in %s (restore with \"mtlint rollback --backup-dir %s\")\n",
			backups.Dir(), backups.Dir())
	}
}
