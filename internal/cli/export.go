package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licitia/atesta/internal/client"
	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/service"
)

var (
	exportXLSX   string
	exportJSON   string
	exportFilter string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the certificate inventory",
	Long: `Export the stored certificate inventory to XLSX or JSON for review
or archiving.

The XLSX workbook carries one sheet with a row per certificate and one
with a row per service record.

Examples:
  atesta export --xlsx acervo.xlsx
  atesta export --json acervo.json
  atesta export --xlsx acervo.xlsx --filter prefeitura`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "write the inventory as an XLSX workbook")
	exportCmd.Flags().StringVar(&exportJSON, "json", "", "write the inventory as a JSON file")
	exportCmd.Flags().StringVarP(&exportFilter, "filter", "f", "", "filter by title substring")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportXLSX == "" && exportJSON == "" {
		return fmt.Errorf("nothing to export: pass --xlsx and/or --json")
	}
	ctx := context.Background()

	certs, err := apiClient.ListCertificates(ctx, exportFilter)
	if err != nil {
		return fmt.Errorf("list certificates: %w", err)
	}
	if len(certs) == 0 {
		fmt.Println("No certificates to export.")
		return nil
	}

	inventory := toModelCertificates(certs)
	exporter := service.NewExporter(nil)

	if exportXLSX != "" {
		if err := exporter.WriteInventoryXLSX(exportXLSX, inventory); err != nil {
			return err
		}
		fmt.Printf("Inventory written to %s\n", exportXLSX)
	}
	if exportJSON != "" {
		if err := exporter.WriteInventoryJSON(exportJSON, inventory); err != nil {
			return err
		}
		fmt.Printf("Inventory written to %s\n", exportJSON)
	}

	fmt.Printf("\nExported %d certificate(s)\n", len(inventory))
	return nil
}

// toModelCertificates rebuilds model certificates from their wire shape
// for the exporter. The string id stays behind; inventory sheets
// reference certificates by title.
func toModelCertificates(in []client.Certificate) []models.Certificate {
	out := make([]models.Certificate, 0, len(in))
	for _, c := range in {
		out = append(out, models.Certificate{
			Title:       c.Title,
			Issuer:      c.Issuer,
			SourcePath:  c.SourcePath,
			Records:     c.Records,
			Quality:     c.Quality,
			Strategy:    c.Strategy,
			Diagnostics: c.Diagnostics,
			Created:     c.Created,
			Updated:     c.Updated,
		})
	}
	return out
}
