package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/classify"
	"github.com/mtl-tools/mtlint/internal/entity"
	"github.com/mtl-tools/mtlint/internal/roster"
	"github.com/mtl-tools/mtlint/internal/ui"
)

var (
	// Global flags
	verbose      bool
	quiet        bool
	format       string
	noColor      bool
	catalogPath  string
	rosterPath   string
	narratorName string
)

// Classifier flags, shared by the commands that can call the
// classification service.
var (
	deep        bool
	offline     bool
	backend     string
	ollamaHost  string
	ollamaModel string
	rateLimit   float64
	callTimeout time.Duration
	cachePath   string
)

var RootCmd = &cobra.Command{
	Use:   "mtlint",
	Short: "A linter for machine-translated narrative text",
	Long: `mtlint scans machine-translated chapters for translation artifacts:
filler phrases, obfuscated names, run-on dialogue, and structural
noise left behind by the MT pipeline.

Pattern detection runs offline. With --deep, ambiguous findings are
sent to a text-understanding service for speaker attribution and
entity resolution, and high-confidence corrections can be applied
in place with full backup and rollback.`,
}

func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress and warnings")
	RootCmd.PersistentFlags().StringVarP(&format, "format", "f", "terminal", "Output format (terminal, json)")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	RootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Pattern catalog file (default: built-in catalog)")
	RootCmd.PersistentFlags().StringVar(&rosterPath, "roster", "", "Character roster file")
	RootCmd.PersistentFlags().StringVar(&narratorName, "narrator", "", "Narrator character name (overrides the roster flag)")
}

// addClassifierFlags registers the flags for commands that may talk to
// the classification service.
func addClassifierFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&deep, "deep", false, "Enable deep analysis using the classification service")
	cmd.Flags().BoolVar(&offline, "offline", false, "Run in offline mode (pattern detection only)")
	cmd.Flags().StringVar(&backend, "backend", "auto", "Classifier backend (auto, anthropic, agent, ollama, none)")
	cmd.Flags().StringVar(&ollamaHost, "ollama-host", os.Getenv("MTLINT_OLLAMA_HOST"), "Ollama daemon URL")
	cmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "Ollama model name")
	cmd.Flags().Float64Var(&rateLimit, "rate", 2, "Classifier calls per second")
	cmd.Flags().DurationVar(&callTimeout, "timeout", 0, "Per-call classifier timeout")
	cmd.Flags().StringVar(&cachePath, "cache", "", "Entity cache snapshot to load and save")
}

var (
	uiOnce     sync.Once
	uiInstance *ui.UI
)

// GetUI returns the process-wide UI, built from the format and color
// flags on first use.
func GetUI() *ui.UI {
	uiOnce.Do(func() {
		uiInstance = ui.New(os.Stdout, os.Stderr, format, noColor || quiet)
	})
	return uiInstance
}

// warnf prints a styled warning to stderr unless --quiet is set.
func warnf(f string, args ...any) {
	if quiet {
		return
	}
	s := GetUI().Styles
	fmt.Fprintln(os.Stderr, s.Medium.Render(
		fmt.Sprintf("%s "+f, append([]any{s.IconWarning}, args...)...),
	))
}

// loadCatalogFlag loads --catalog, falling back to the built-in catalog.
func loadCatalogFlag() (*catalog.Catalog, error) {
	if catalogPath != "" {
		return catalog.LoadFile(catalogPath)
	}
	return catalog.Default()
}

// loadRosterFlag loads --roster (empty roster when unset) and applies
// the --narrator override.
func loadRosterFlag() (*roster.Roster, error) {
	ros := roster.Empty()
	if rosterPath != "" {
		loaded, err := roster.Load(rosterPath)
		if err != nil {
			return nil, err
		}
		ros = loaded
	}
	if narratorName != "" {
		ros = ros.WithNarrator(narratorName)
	}
	return ros, nil
}

// buildClassifier constructs the classifier from the shared flags, or
// returns nil when the run is pattern-only.
func buildClassifier(ros *roster.Roster) (*classify.Classifier, error) {
	if !deep || offline || backend == "none" {
		return nil, nil
	}

	client, err := classify.NewClient(backend, ollamaHost, ollamaModel)
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "classifier backend: %s\n", client.Name())
	}

	cache := entity.NewCache()
	if cachePath != "" {
		if f, err := os.Open(cachePath); err == nil {
			defer f.Close()
			if err := cache.Import(f); err != nil {
				return nil, fmt.Errorf("load entity cache %s: %w", cachePath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	opts := classify.Options{Timeout: callTimeout}
	if rateLimit > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
	}
	return classify.New(client, ros, cache, opts), nil
}

// saveCache writes the classifier's entity cache back to --cache.
func saveCache(c *classify.Classifier) error {
	if c == nil || cachePath == "" {
		return nil
	}
	f, err := os.Create(cachePath)
	if err != nil {
		return fmt.Errorf("save entity cache: %w", err)
	}
	defer f.Close()
	return c.Cache().Export(f)
}
