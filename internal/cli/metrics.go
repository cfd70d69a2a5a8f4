package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/licitia/atesta/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show server metrics",
	Long: `Show the server's in-memory operation metrics: timings for
extraction, vision calls, matching, database queries and export, plus
strategy win counts and vision escalations.

Examples:
  atesta metrics`,
	RunE: runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	snap, err := apiClient.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("get metrics: %w", err)
	}
	printSnapshot(snap)
	return nil
}

// printSnapshot displays server runtime statistics.
func printSnapshot(snap *metrics.Snapshot) {
	fmt.Printf("Server Metrics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if snap.Extraction != nil {
		fmt.Printf("\nExtraction:\n")
		printOpStats(snap.Extraction)
	}

	if snap.VisionCall != nil {
		fmt.Printf("\nVision Calls:\n")
		printOpStats(snap.VisionCall)
		printVolumeStats(snap.VisionCall)
	}

	if snap.Match != nil {
		fmt.Printf("\nMatching:\n")
		printOpStats(snap.Match)
	}

	if snap.DBQuery != nil {
		fmt.Printf("\nDB Query:\n")
		printOpStats(snap.DBQuery)
	}

	if snap.Export != nil {
		fmt.Printf("\nExport:\n")
		printOpStats(snap.Export)
	}

	if len(snap.StrategyWins) > 0 {
		fmt.Printf("\nStrategy wins:\n")
		names := make([]string, 0, len(snap.StrategyWins))
		for name := range snap.StrategyWins {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-15s %d\n", name, snap.StrategyWins[name])
		}
	}

	fmt.Printf("\nVision escalations: %d\n", snap.VisionEscalations)
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printVolumeStats displays page and row volume statistics if available.
func printVolumeStats(op *metrics.OperationSnapshot) {
	if op.TotalPages != nil {
		fmt.Printf("  Pages: %d total", *op.TotalPages)
		if op.AvgPages != nil {
			fmt.Printf(", avg %.1f", *op.AvgPages)
		}
		if op.MinPages != nil && op.MaxPages != nil {
			fmt.Printf(", min %d, max %d", *op.MinPages, *op.MaxPages)
		}
		fmt.Println()
	}

	if op.TotalRows != nil {
		fmt.Printf("  Rows:  %d total", *op.TotalRows)
		if op.AvgRows != nil {
			fmt.Printf(", avg %.1f", *op.AvgRows)
		}
		if op.MinRows != nil && op.MaxRows != nil {
			fmt.Printf(", min %d, max %d", *op.MinRows, *op.MaxRows)
		}
		fmt.Println()
	}
}
