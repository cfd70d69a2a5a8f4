// Package cli provides the command-line interface for atesta.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/licitia/atesta/internal/client"
	"github.com/licitia/atesta/internal/config"
	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/service"
	"github.com/licitia/atesta/internal/vision"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and API client
	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "atesta",
	Short: "Bidding-evidence toolkit for public tenders",
	Long: `Atesta extracts service records from atestados de capacidade técnica
(PDF-derived document sources) and evaluates edital requirements against
the resulting acervo.

Extraction runs in-process by default. The --store flag and the
management commands (certificates, jobs, match, export, metrics) talk to
a running atesta-server.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		// Warnings only unless --verbose, so table output stays clean.
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		apiClient = client.New(cfg.ServerURL)
		return nil
	},
}

// localExtraction builds an in-process pipeline without persistence.
// The vision provider is optional: when its configuration is incomplete
// the cascade runs with the vision strategy disabled.
func localExtraction() *service.ExtractionService {
	pipelineCfg := extract.DefaultConfig()
	pipelineCfg.AcceptThreshold = cfg.AcceptThreshold
	pipelineCfg.MergeThreshold = cfg.MergeThreshold
	pipelineCfg.StrictCodes = cfg.StrictCodes
	pipelineCfg.VisionBatchPages = cfg.VisionBatchPages
	pipelineCfg.VisionTimeout = cfg.VisionTimeout

	var provider extract.VisionProvider
	if p, err := vision.NewProvider(cfg); err != nil {
		slog.Warn("vision provider unavailable, image-only documents will fail", "provider", cfg.VisionProvider, "error", err)
	} else {
		provider = p
	}

	return service.NewExtractionService(nil, pipelineCfg, provider, nil)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(certificatesCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(metricsCmd)
}

// terminalWidth returns the stdout width, or a default when stdout is
// not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

// truncate shortens s to max runes, ending in an ellipsis.
func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
