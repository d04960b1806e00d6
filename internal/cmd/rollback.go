package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/gate"
)

var rollbackBackupDir string

var rollbackCmd = &cobra.Command{
	Use:   "rollback [files...]",
	Short: "Restore files from a fix run's backups",
	Long: `Restore chapter files from the snapshots taken before a fix run.
With no arguments every snapshotted file is restored; otherwise only
the named files are. Snapshots are verified against their recorded
checksums before anything is written.

Examples:
  mtlint rollback
  mtlint rollback chapters/ch-003.txt`,
	RunE:         runRollback,
	SilenceUsage: true,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackBackupDir, "backup-dir", ".mtlint-backup", "Backup directory to restore from")
	RootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	s := GetUI().Styles

	res, err := gate.Rollback(rollbackBackupDir, args...)
	if res != nil {
		for _, path := range res.Restored {
			fmt.Printf("%s restored %s\n", s.IconSuccess, path)
		}
	}
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if len(res.Restored) == 0 {
		fmt.Println("nothing to restore")
		return nil
	}
	fmt.Println(s.Success.Render(fmt.Sprintf("%s restored %d files from run %s",
		s.IconSuccess, len(res.Restored), res.RunID)))
	return nil
}
