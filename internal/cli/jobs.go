package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/licitia/atesta/internal/client"
)

var jobsWatch bool

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background extraction jobs",
	Long: `List all background jobs or inspect a specific job by ID.

Examples:
  atesta jobs                  # List all jobs
  atesta jobs a1b2c3d4         # Show details for job a1b2c3d4
  atesta jobs a1b2c3d4 --watch # Follow a running job to completion`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "follow a running job until it finishes")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// If job ID provided, show that specific job
	if len(args) == 1 {
		return showJob(ctx, args[0])
	}

	// List all jobs
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-10s %-12s %-10s %-10s %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "STARTED", "NAME")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.Total > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress, job.Total)
		}
		started := job.StartedAt.Format("15:04:05")
		fmt.Printf("%-10s %-10s %-12s %-10s %-10s %s\n", job.ID, job.Type, job.Status, progress, started, job.Name)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", id)
	}

	if jobsWatch && !job.Status.Terminal() {
		return watchJob(ctx, job)
	}

	fmt.Printf("Job: %s\n", job.ID)
	if job.Name != "" {
		fmt.Printf("  Name: %s\n", job.Name)
	}
	fmt.Printf("  Type: %s\n", job.Type)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.DirPath != "" {
		fmt.Printf("  Directory: %s\n", job.DirPath)
	}
	if job.Total > 0 {
		fmt.Printf("  Progress: %d/%d\n", job.Progress, job.Total)
	}
	fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		duration := job.CompletedAt.Sub(job.StartedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.Result != nil {
		fmt.Println("\nResult:")
		printJobResult(job)
	}

	return nil
}

// printJobResult shows a completed job's batch summary.
func printJobResult(job *client.Job) {
	if job.Result == nil {
		return
	}
	r := job.Result
	fmt.Printf("  Sources processed:   %d\n", r.SourcesProcessed)
	fmt.Printf("  Certificates stored: %d\n", r.CertificatesStored)
	fmt.Printf("  Records extracted:   %d\n", r.RecordsExtracted)
	if len(r.Errors) > 0 {
		fmt.Printf("\n  Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
