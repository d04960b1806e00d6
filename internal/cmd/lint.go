package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/ingest"
	"github.com/mtl-tools/mtlint/internal/pipeline"
	"github.com/mtl-tools/mtlint/internal/report"
	"github.com/mtl-tools/mtlint/internal/store"
	"github.com/mtl-tools/mtlint/internal/ui"
)

var (
	lintWorkers int
	lintDB      string
)

var lintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Lint machine-translated chapters",
	Long: `Scan a chapter file or a directory of chapters for translation
artifacts.

Examples:
  mtlint lint chapters/
  mtlint lint --deep --roster roster.yaml chapters/
  mtlint lint --format json chapters/ > report.json`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runLint,
	SilenceUsage: true,
}

func init() {
	addClassifierFlags(lintCmd)
	lintCmd.Flags().IntVar(&lintWorkers, "workers", 0, "Concurrent chapter workers (default: CPU count)")
	lintCmd.Flags().StringVar(&lintDB, "db", "", "Record the run in a sqlite database")
	RootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
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

	// Stage 1: Load catalog and roster
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

	if verbose {
		fmt.Fprintf(os.Stderr, "catalog: %d rules, threshold %.2f\n", len(cat.Rules), cat.Threshold)
	}

	// Stage 2: Read chapters
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

	// Stage 3: Analyze
	if progress != nil {
		progress.SetStage(ui.StageAnalyze)
		progress.SetChapterCount(len(vol.Chapters))
	}

	runner := pipeline.New(cat, ros, classifier, pipeline.Options{
		Workers: lintWorkers,
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

	repVol := report.NewVolume(absPath)
	for _, res := range results {
		repVol.Add(res.Stats)
	}

	if lintDB != "" {
		mode := "offline"
		if classifier != nil {
			mode = "deep"
		}
		if err := recordRun(cmd, lintDB, absPath, mode, cat.Threshold, started, repVol); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	// Stop progress before reporting
	if progress != nil {
		progress.Done(nil)
		progress = nil
	}

	return renderVolume(repVol)
}

// renderVolume picks the reporter for the format flag.
func renderVolume(v *report.Volume) error {
	var rep report.Reporter
	switch format {
	case "json":
		rep = report.NewJSONReporter(os.Stdout)
	default:
		rep = report.NewTerminalReporter(os.Stdout, GetUI())
	}
	return rep.Report(v)
}

// recordRun persists the run header and every chapter to the database.
func recordRun(cmd *cobra.Command, dbPath, volPath, mode string, threshold float64, started time.Time, v *report.Volume) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	run := store.Run{
		ID:         uuid.New().String(),
		Path:       volPath,
		Mode:       mode,
		Threshold:  threshold,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := st.SaveRun(ctx, run); err != nil {
		return err
	}
	for _, cs := range v.Chapters {
		if err := st.SaveChapter(ctx, run.ID, cs); err != nil {
			return err
		}
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "recorded run %s in %s\n", run.ID, dbPath)
	}
	return nil
}
