package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/service"
)

var (
	matchRequirementsFile string
	matchXLSX             string
	matchJSON             string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Evaluate edital requirements against the stored acervo",
	Long: `Evaluate edital requirements against the certificates stored on the
server.

Requirements come from a YAML file: a bare list of requirement objects
or a document with a top-level "requirements" key. Each entry carries
description, unit, quantity_minimum and allow_sum.

Examples:
  atesta match --requirements edital.yaml
  atesta match -r edital.yaml --xlsx relatorio.xlsx
  atesta match -r edital.yaml --json resultados.json -v`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&matchRequirementsFile, "requirements", "r", "", "requirements YAML file (required)")
	matchCmd.Flags().StringVar(&matchXLSX, "xlsx", "", "write an XLSX match report")
	matchCmd.Flags().StringVar(&matchJSON, "json", "", "write a JSON match report")
	matchCmd.MarkFlagRequired("requirements")
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	reqs, err := service.LoadRequirements(matchRequirementsFile)
	if err != nil {
		return err
	}

	results, err := apiClient.MatchBatch(ctx, reqs, nil)
	if err != nil {
		return fmt.Errorf("match requirements: %w", err)
	}

	printMatchResults(results)

	exporter := service.NewExporter(nil)
	if matchXLSX != "" {
		if err := exporter.WriteMatchReportXLSX(matchXLSX, results); err != nil {
			return err
		}
		fmt.Printf("\nXLSX report written to %s\n", matchXLSX)
	}
	if matchJSON != "" {
		if err := exporter.WriteMatchReportJSON(matchJSON, results); err != nil {
			return err
		}
		fmt.Printf("JSON report written to %s\n", matchJSON)
	}
	return nil
}

func printMatchResults(results []models.MatchResult) {
	met := 0
	for _, r := range results {
		if r.Status == models.StatusAtende {
			met++
		}
	}
	fmt.Printf("Requirements: %d  Met: %d\n\n", len(results), met)

	for _, r := range results {
		fmt.Printf("[%s] %.1f%%  %s (%.2f %s)\n",
			statusLabel(r.Status), r.PercentualTotal,
			r.Requirement.Description, r.Requirement.QuantityMinimum, r.Requirement.Unit)

		for _, use := range r.Certificates {
			fmt.Printf("    %-40s %12.2f  %5.1f%%\n",
				truncate(use.CertificateRef, 40), use.QuantityUsed, use.CoveragePercent)
		}

		if verbose && len(r.Suggestions) > 0 {
			fmt.Println("    Sugestões:")
			for _, sug := range r.Suggestions {
				fmt.Printf("      %s: %s (%.0f%% similar)\n",
					sug.CertificateRef, truncate(sug.Description, 60), sug.Similarity*100)
			}
		}
		fmt.Println()
	}
}

// statusLabel renders a match status for terminal output.
func statusLabel(s models.MatchStatus) string {
	switch s {
	case models.StatusAtende:
		return "ATENDE"
	case models.StatusParcial:
		return "PARCIAL"
	case models.StatusNaoAtende:
		return "NÃO ATENDE"
	default:
		return string(s)
	}
}
