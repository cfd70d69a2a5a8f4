// Package db provides SurrealDB query functions for certificate and
// extraction job operations.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/licitia/atesta/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// UpsertCertificate creates or replaces a certificate by ID. The record
// list is replaced whole, so a re-run of the pipeline overwrites stale
// rows instead of accumulating them.
// Returns (certificate, wasCreated, error) where wasCreated indicates if
// the certificate was new.
func (c *Client) UpsertCertificate(ctx context.Context, id string, input models.CertificateInput) (*models.Certificate, bool, error) {
	records := input.Records
	if records == nil {
		records = []models.ServiceRecord{}
	}
	diagnostics := input.Diagnostics
	if diagnostics == nil {
		diagnostics = []string{}
	}

	// Check if certificate exists to determine action
	existsSQL := `SELECT count() AS c FROM type::record("certificate", $id)`
	existsResult, err := surrealdb.Query[[]struct{ C int }](ctx, c.db, existsSQL, map[string]any{"id": id})
	if err != nil {
		return nil, false, fmt.Errorf("check certificate exists: %w", err)
	}

	wasCreated := true
	if existsResult != nil && len(*existsResult) > 0 && len((*existsResult)[0].Result) > 0 {
		wasCreated = (*existsResult)[0].Result[0].C == 0
	}

	// Preserve created on update, replace everything else
	sql := `
		UPSERT type::record("certificate", $id) SET
			title = $title,
			issuer = $issuer,
			source_path = $source_path,
			records = $records,
			quality = $quality,
			strategy = $strategy,
			diagnostics = $diagnostics,
			updated = time::now(),
			created = IF created THEN created ELSE time::now() END
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Certificate](ctx, c.db, sql, map[string]any{
		"id":          id,
		"title":       input.Title,
		"issuer":      input.Issuer,
		"source_path": input.SourcePath,
		"records":     records,
		"quality":     input.Quality,
		"strategy":    string(input.Strategy),
		"diagnostics": diagnostics,
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert certificate: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, fmt.Errorf("upsert certificate: no result returned")
	}

	return &(*results)[0].Result[0], wasCreated, nil
}

// GetCertificate retrieves a certificate by ID.
// Returns nil if not found.
func (c *Client) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	results, err := surrealdb.Query[[]models.Certificate](ctx, c.db, `
		SELECT * FROM type::record("certificate", $id)
	`, map[string]any{"id": id})

	if err != nil {
		return nil, fmt.Errorf("get certificate: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListCertificates returns certificates ordered by title, optionally
// filtered by a case-insensitive substring of title or issuer. The full
// record lists ride along; the matching engine needs them anyway.
func (c *Client) ListCertificates(ctx context.Context, filter string) ([]models.Certificate, error) {
	sql := `SELECT * FROM certificate ORDER BY title`
	vars := map[string]any{}
	if filter != "" {
		sql = `
			SELECT * FROM certificate
			WHERE string::lowercase(title) CONTAINS $filter
				OR string::lowercase(issuer ?? "") CONTAINS $filter
			ORDER BY title
		`
		vars["filter"] = strings.ToLower(filter)
	}

	results, err := surrealdb.Query[[]models.Certificate](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Certificate{}, nil
	}
	return (*results)[0].Result, nil
}

// CountCertificates returns the number of stored certificates.
func (c *Client) CountCertificates(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM certificate GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// DeleteCertificates deletes certificates by ID.
// Returns count of deleted certificates (0 if none found - idempotent).
func (c *Client) DeleteCertificates(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Delete with RETURN BEFORE to count actual deletions
	sql := `DELETE certificate WHERE id IN $ids RETURN BEFORE`

	// Convert string IDs to record format
	recordIDs := make([]string, len(ids))
	for i, id := range ids {
		recordIDs[i] = "certificate:" + id
	}

	results, err := surrealdb.Query[[]models.Certificate](ctx, c.db, sql, map[string]any{
		"ids": recordIDs,
	})
	if err != nil {
		return 0, fmt.Errorf("delete certificates: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// GetCertificateSourcePaths returns which of the given source paths
// already have a certificate. Used by job resume to skip processed files.
func (c *Client) GetCertificateSourcePaths(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{}, nil
	}

	results, err := surrealdb.Query[[]struct {
		SourcePath string `json:"source_path"`
	}](ctx, c.db, `
		SELECT source_path FROM certificate WHERE source_path IN $paths
	`, map[string]any{"paths": paths})
	if err != nil {
		return nil, fmt.Errorf("get certificate source paths: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []string{}, nil
	}

	found := make([]string, 0, len((*results)[0].Result))
	for _, row := range (*results)[0].Result {
		found = append(found, row.SourcePath)
	}
	return found, nil
}

// CreateExtractionJob persists a new pending job.
func (c *Client) CreateExtractionJob(
	ctx context.Context,
	id string,
	jobType string,
	name string,
	dirPath string,
	sources []string,
	options map[string]any,
) error {
	if sources == nil {
		sources = []string{}
	}

	var namePtr *string
	if name != "" {
		namePtr = &name
	}

	sql := `
		CREATE type::record("extraction_job", $id) SET
			job_type = $job_type,
			status = "pending",
			name = $name,
			dir_path = $dir_path,
			sources = $sources,
			options = $options,
			total = $total,
			progress = 0
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":       id,
		"job_type": jobType,
		"name":     namePtr,
		"dir_path": dirPath,
		"sources":  sources,
		"options":  options,
		"total":    len(sources),
	})
	if err != nil {
		return fmt.Errorf("create extraction job: %w", wrapQueryError(err))
	}
	return nil
}

// GetJob retrieves an extraction job by ID.
// Returns nil if not found.
func (c *Client) GetJob(ctx context.Context, id string) (*models.ExtractionJob, error) {
	results, err := surrealdb.Query[[]models.ExtractionJob](ctx, c.db, `
		SELECT * FROM type::record("extraction_job", $id)
	`, map[string]any{"id": id})

	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListJobs returns jobs most recent first, up to limit (0 means all).
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.ExtractionJob, error) {
	sql := `SELECT * FROM extraction_job ORDER BY started_at DESC`
	vars := map[string]any{}
	if limit > 0 {
		sql += ` LIMIT $limit`
		vars["limit"] = limit
	}

	results, err := surrealdb.Query[[]models.ExtractionJob](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ExtractionJob{}, nil
	}
	return (*results)[0].Result, nil
}

// UpdateJobProgress updates the progress counter of a job.
func (c *Client) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("extraction_job", $id) SET progress = $progress
	`, map[string]any{"id": id, "progress": progress})
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// UpdateJobStatus updates the status of a job.
func (c *Client) UpdateJobStatus(ctx context.Context, id string, status string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("extraction_job", $id) SET status = $status
	`, map[string]any{"id": id, "status": status})
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// CompleteJob marks a job completed with its result summary.
func (c *Client) CompleteJob(ctx context.Context, id string, result map[string]any) error {
	if result == nil {
		result = map[string]any{}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("extraction_job", $id) SET
			status = "completed",
			result = $result,
			completed_at = time::now()
	`, map[string]any{"id": id, "result": result})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job failed with an error message.
func (c *Client) FailJob(ctx context.Context, id string, errMsg string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("extraction_job", $id) SET
			status = "failed",
			error = $error,
			completed_at = time::now()
	`, map[string]any{"id": id, "error": errMsg})
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetIncompleteJobs returns jobs still pending or running, oldest first,
// for resume after a restart.
func (c *Client) GetIncompleteJobs(ctx context.Context) ([]models.ExtractionJob, error) {
	results, err := surrealdb.Query[[]models.ExtractionJob](ctx, c.db, `
		SELECT * FROM extraction_job
		WHERE status IN ["pending", "running"]
		ORDER BY started_at
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("get incomplete jobs: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ExtractionJob{}, nil
	}
	return (*results)[0].Result, nil
}

// FailStaleJobs fails pending or running jobs that started before the
// cutoff. Used by the periodic sweeper to clear jobs orphaned by crashes.
// Returns the number of jobs failed.
func (c *Client) FailStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339Nano)

	results, err := surrealdb.Query[[]models.ExtractionJob](ctx, c.db, `
		UPDATE extraction_job SET
			status = "failed",
			error = "job stale: no progress before cutoff",
			completed_at = time::now()
		WHERE status IN ["pending", "running"] AND started_at < <datetime>$cutoff
		RETURN AFTER
	`, map[string]any{"cutoff": cutoff})
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}
