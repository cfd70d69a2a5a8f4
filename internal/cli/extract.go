package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/licitia/atesta/internal/client"
	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/service"
)

var (
	extractIssuer    string
	extractStore     bool
	extractRecursive bool
	extractJobName   string
	extractOutput    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <source.json|dir>",
	Short: "Extract service records from document sources",
	Long: `Extract service records from PDF-derived document source files.

A single source runs through the strategy cascade in-process and prints
the extracted records. With --store the source is handled by the server
and the resulting certificate is persisted in the acervo. A directory
with --store creates a background job on the server and follows its
progress; without it, all sources are processed in-process and only
summarized.

Examples:
  atesta extract ./atestado.json
  atesta extract ./atestado.json --issuer "Prefeitura de Niterói" --store
  atesta extract ./sources --store --name "acervo-2024"
  atesta extract ./sources -o resultados.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractIssuer, "issuer", "i", "", "issuing entity stamped on stored certificates")
	extractCmd.Flags().BoolVar(&extractStore, "store", false, "persist certificates via the server")
	extractCmd.Flags().BoolVarP(&extractRecursive, "recursive", "r", true, "recursively process subdirectories")
	extractCmd.Flags().StringVar(&extractJobName, "name", "", "job name for directory extraction")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write extraction results to a JSON file")
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := context.Background()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if info.IsDir() {
		if extractStore {
			return extractDirectoryViaServer(ctx, path)
		}
		return extractDirectoryLocal(ctx, path)
	}
	if extractStore {
		return extractFileViaServer(ctx, path)
	}
	return extractFileLocal(ctx, path)
}

func extractFileLocal(ctx context.Context, path string) error {
	svc := localExtraction()

	outcome, err := svc.ExtractFile(ctx, path, service.ExtractOptions{Issuer: extractIssuer})
	if err != nil {
		return err
	}

	printExtraction(outcome.Result)
	if extractOutput != "" {
		return writeJSONFile(extractOutput, outcome)
	}
	return nil
}

func extractFileViaServer(ctx context.Context, path string) error {
	// The server resolves the path on its own filesystem.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	outcome, err := apiClient.ExtractPath(ctx, abs, extractIssuer)
	if err != nil {
		return fmt.Errorf("extract via server: %w", err)
	}

	printExtraction(outcome.Result)
	if outcome.Certificate != nil {
		verb := "updated"
		if outcome.Created {
			verb = "created"
		}
		fmt.Printf("\nCertificate %s: %s (%s)\n", verb, outcome.Certificate.Title, outcome.Certificate.ID)
	}
	if extractOutput != "" {
		return writeJSONFile(extractOutput, outcome)
	}
	return nil
}

func extractDirectoryLocal(ctx context.Context, path string) error {
	svc := localExtraction()

	opts := service.ExtractOptions{
		Issuer:      extractIssuer,
		Recursive:   extractRecursive,
		Concurrency: cfg.JobConcurrency,
	}
	result, err := svc.ExtractDirectory(ctx, path, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Sources processed: %d\n", result.SourcesProcessed)
	fmt.Printf("Records extracted: %d\n", result.RecordsExtracted)
	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if extractOutput != "" {
		return writeJSONFile(extractOutput, result)
	}
	return nil
}

func extractDirectoryViaServer(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	job, err := apiClient.CreateExtractJob(ctx, abs, client.ExtractJobOptions{
		Name:      extractJobName,
		Issuer:    extractIssuer,
		Recursive: extractRecursive,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	fmt.Printf("Job %s created: %d sources\n", job.ID, job.Total)
	return watchJob(ctx, job)
}

// printExtraction shows one extraction result: the strategy that won,
// the composite quality score and the record table.
func printExtraction(result models.ExtractionResult) {
	fmt.Printf("Strategy: %s  Quality: %.2f  Records: %d\n", result.Strategy, result.Quality, len(result.Records))
	if len(result.Records) > 0 {
		fmt.Println()
		printRecords(result.Records)
	}

	if verbose && len(result.Diagnostics) > 0 {
		fmt.Printf("\nDiagnostics (%d):\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Printf("  - %s\n", d)
		}
	}
}

// printRecords renders service records as a table sized to the
// terminal.
func printRecords(records []models.ServiceRecord) {
	descWidth := terminalWidth() - 38
	if descWidth < 20 {
		descWidth = 20
	}

	fmt.Printf("%-12s %-*s %-8s %12s\n", "ITEM", descWidth, "DESCRIÇÃO", "UNIDADE", "QUANTIDADE")
	for _, rec := range records {
		code := "-"
		if rec.Code != nil {
			code = rec.Code.String()
		}
		fmt.Printf("%-12s %-*s %-8s %12.2f\n", code, descWidth, truncate(rec.Description, descWidth), rec.Unit, rec.Quantity)
	}
}

func writeJSONFile(path string, payload any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Printf("\nResults written to %s\n", path)
	return nil
}
