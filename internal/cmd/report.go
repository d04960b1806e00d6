package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/store"
)

var (
	reportDB   string
	reportRun  string
	reportList bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render a recorded run",
	Long: `Render the report for a run recorded with "lint --db" or "fix --db",
without re-scanning anything.

Examples:
  mtlint report --db mtlint.db
  mtlint report --db mtlint.db --list
  mtlint report --db mtlint.db --run 6f1c... --format json`,
	Args:         cobra.NoArgs,
	RunE:         runReport,
	SilenceUsage: true,
}

func init() {
	reportCmd.Flags().StringVar(&reportDB, "db", "mtlint.db", "Run database")
	reportCmd.Flags().StringVar(&reportRun, "run", "", "Run ID to render (default: latest)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "List recorded runs instead of rendering")
	RootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	st, err := store.Open(reportDB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()

	if reportList {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-11s  threshold %.2f  %s\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Mode, r.Threshold, r.Path)
		}
		return nil
	}

	runID := reportRun
	if runID == "" {
		latest, err := st.LatestRun(ctx)
		if err != nil {
			return err
		}
		runID = latest.ID
	}

	vol, err := st.LoadVolume(ctx, runID)
	if err != nil {
		return err
	}
	return renderVolume(vol)
}
