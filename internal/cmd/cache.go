package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtl-tools/mtlint/internal/entity"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage entity cache snapshots",
	Long: `Entity cache snapshots carry resolved entity references between runs
so the classifier never re-resolves a term it has already seen.
Snapshots are written by "lint --cache" and "fix --cache".`,
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats <snapshot>",
	Short:        "Summarize a cache snapshot",
	Args:         cobra.ExactArgs(1),
	RunE:         runCacheStats,
	SilenceUsage: true,
}

var cacheExportCmd = &cobra.Command{
	Use:          "export <snapshot>",
	Short:        "Dump a cache snapshot as JSON",
	Args:         cobra.ExactArgs(1),
	RunE:         runCacheExport,
	SilenceUsage: true,
}

var cacheImportCmd = &cobra.Command{
	Use:          "import <dst> <src>...",
	Short:        "Merge cache snapshots",
	Long:         `Merge one or more snapshots into dst. Later sources win on key conflicts.`,
	Args:         cobra.MinimumNArgs(2),
	RunE:         runCacheImport,
	SilenceUsage: true,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheImportCmd)
	RootCmd.AddCommand(cacheCmd)
}

func loadSnapshot(path string) (*entity.Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cache := entity.NewCache()
	if err := cache.Import(f); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return cache, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cache, err := loadSnapshot(args[0])
	if err != nil {
		return err
	}

	byType := make(map[string]int)
	var obfuscated int
	for _, e := range cache.Snapshot() {
		byType[string(e.Ref.Type)]++
		if e.Ref.Obfuscated {
			obfuscated++
		}
	}

	fmt.Printf("%s: %d entries\n", args[0], cache.Len())
	for typ, n := range byType {
		fmt.Printf("  %-8s %d\n", typ, n)
	}
	fmt.Printf("  obfuscated: %d\n", obfuscated)
	return nil
}

type cacheDumpEntry struct {
	Key          string  `json:"key"`
	Term         string  `json:"term"`
	Canonical    string  `json:"canonical"`
	Confidence   float64 `json:"confidence"`
	Type         string  `json:"type"`
	Obfuscated   bool    `json:"obfuscated"`
	Verification string  `json:"verification"`
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	cache, err := loadSnapshot(args[0])
	if err != nil {
		return err
	}

	entries := cache.Snapshot()
	dump := make([]cacheDumpEntry, 0, len(entries))
	for _, e := range entries {
		dump = append(dump, cacheDumpEntry{
			Key:          e.Key,
			Term:         e.Ref.Term,
			Canonical:    e.Ref.Canonical,
			Confidence:   e.Ref.Confidence,
			Type:         string(e.Ref.Type),
			Obfuscated:   e.Ref.Obfuscated,
			Verification: string(e.Ref.Verification),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

func runCacheImport(cmd *cobra.Command, args []string) error {
	dst := args[0]

	merged := entity.NewCache()
	if _, err := os.Stat(dst); err == nil {
		existing, err := loadSnapshot(dst)
		if err != nil {
			return err
		}
		merged = existing
	}

	for _, src := range args[1:] {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		err = merged.Import(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", src, err)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := merged.Export(out); err != nil {
		return err
	}

	fmt.Printf("%s: %d entries\n", dst, merged.Len())
	return nil
}
