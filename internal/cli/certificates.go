package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	certFilter  string
	deleteForce bool
)

var certificatesCmd = &cobra.Command{
	Use:   "certificates",
	Short: "Manage the stored certificate acervo",
	Long: `List, inspect and delete certificates stored on the server.

Subcommands:
  list    List certificates (default)
  show    Show one certificate with its service records
  delete  Delete a certificate

Examples:
  atesta certificates
  atesta certificates list --filter escola
  atesta certificates show obra-escola-municipal
  atesta certificates delete obra-escola-municipal --force`,
	RunE: runListCertificates,
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates",
	RunE:  runListCertificates,
}

var certShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one certificate with its service records",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowCertificate,
}

var certDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteCertificate,
}

func init() {
	certificatesCmd.Flags().StringVarP(&certFilter, "filter", "f", "", "filter by title substring")
	certListCmd.Flags().StringVarP(&certFilter, "filter", "f", "", "filter by title substring")
	certDeleteCmd.Flags().BoolVar(&deleteForce, "force", false, "skip confirmation")

	certificatesCmd.AddCommand(certListCmd)
	certificatesCmd.AddCommand(certShowCmd)
	certificatesCmd.AddCommand(certDeleteCmd)
}

func runListCertificates(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	certs, err := apiClient.ListCertificates(ctx, certFilter)
	if err != nil {
		return fmt.Errorf("list certificates: %w", err)
	}

	if len(certs) == 0 {
		fmt.Println("No certificates found.")
		return nil
	}

	titleWidth := terminalWidth() - 58
	if titleWidth < 20 {
		titleWidth = 20
	}

	fmt.Printf("%-*s %-20s %7s %8s %-12s\n", titleWidth, "ATESTADO", "EMISSOR", "ITENS", "QUALID.", "ESTRATÉGIA")
	for _, c := range certs {
		fmt.Printf("%-*s %-20s %7d %8.2f %-12s\n",
			titleWidth, truncate(c.Title, titleWidth),
			truncate(c.Issuer, 20), len(c.Records), c.Quality, c.Strategy)
	}
	fmt.Printf("\n%d certificate(s)\n", len(certs))
	return nil
}

func runShowCertificate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cert, err := apiClient.GetCertificate(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get certificate: %w", err)
	}
	if cert == nil {
		return fmt.Errorf("certificate not found: %s", args[0])
	}

	fmt.Printf("Certificate: %s\n", cert.Title)
	fmt.Printf("  ID: %s\n", cert.ID)
	if cert.Issuer != "" {
		fmt.Printf("  Issuer: %s\n", cert.Issuer)
	}
	if cert.SourcePath != "" {
		fmt.Printf("  Source: %s\n", cert.SourcePath)
	}
	fmt.Printf("  Quality: %.2f\n", cert.Quality)
	fmt.Printf("  Strategy: %s\n", cert.Strategy)
	if !cert.Created.IsZero() {
		fmt.Printf("  Created: %s\n", cert.Created.Format(time.RFC3339))
	}

	if len(cert.Records) > 0 {
		fmt.Printf("\nRecords (%d):\n", len(cert.Records))
		printRecords(cert.Records)
	}

	if verbose && len(cert.Diagnostics) > 0 {
		fmt.Printf("\nDiagnostics (%d):\n", len(cert.Diagnostics))
		for _, d := range cert.Diagnostics {
			fmt.Printf("  - %s\n", d)
		}
	}
	return nil
}

func runDeleteCertificate(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := context.Background()

	cert, err := apiClient.GetCertificate(ctx, id)
	if err != nil {
		return fmt.Errorf("get certificate: %w", err)
	}
	if cert == nil {
		return fmt.Errorf("certificate not found: %s", id)
	}

	// Confirm deletion
	if !deleteForce {
		fmt.Printf("About to delete: %s (%d records)\n", cert.Title, len(cert.Records))
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	deleted, err := apiClient.DeleteCertificate(ctx, id)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("certificate not found or already deleted")
	}

	fmt.Printf("Deleted: %s\n", cert.Title)
	return nil
}
