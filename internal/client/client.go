// Package client provides an HTTP client for the atesta server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
)

// Client talks to the atesta server REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses ATESTA_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via ATESTA_CLIENT_TIMEOUT env var (default 10m for vision-backed batches).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ATESTA_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 10 * time.Minute // Default: 10 minutes for vision-backed extraction
	if t := os.Getenv("ATESTA_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// do sends one JSON request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &errBody); err == nil && errBody.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: errBody.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// =============================================================================
// TYPES (matching the REST wire shapes)
// =============================================================================

// JobStatus is the lifecycle state of a server-side job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BatchResult summarizes a batch extraction run.
type BatchResult struct {
	SourcesProcessed   int      `json:"sources_processed"`
	CertificatesStored int      `json:"certificates_stored"`
	RecordsExtracted   int      `json:"records_extracted"`
	Errors             []string `json:"errors,omitempty"`
}

// Job represents a background extraction job.
type Job struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Status      JobStatus    `json:"status"`
	Name        string       `json:"name,omitempty"`
	Progress    int          `json:"progress"`
	Total       int          `json:"total"`
	Result      *BatchResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DirPath     string       `json:"dir_path,omitempty"`
}

// Certificate is a stored certificate as served by the API. The record
// ID travels as a plain string.
type Certificate struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Issuer      string                 `json:"issuer,omitempty"`
	SourcePath  string                 `json:"source_path,omitempty"`
	Records     []models.ServiceRecord `json:"records"`
	Quality     float64                `json:"quality"`
	Strategy    models.SourceStrategy  `json:"strategy,omitempty"`
	Diagnostics []string               `json:"diagnostics,omitempty"`
	Created     time.Time              `json:"created,omitempty"`
	Updated     time.Time              `json:"updated,omitempty"`
}

// ExtractOutcome is the result of one synchronous extraction. The
// certificate is only present when the server persists to a store.
type ExtractOutcome struct {
	SourcePath  string                  `json:"source_path,omitempty"`
	Result      models.ExtractionResult `json:"result"`
	Certificate *Certificate            `json:"certificate,omitempty"`
	Created     bool                    `json:"created,omitempty"`
}

// PoolCertificate is an inline pool entry for match requests: a
// certificate supplied in the request instead of loaded from the store.
type PoolCertificate struct {
	Title   string                 `json:"title"`
	Issuer  string                 `json:"issuer,omitempty"`
	Records []models.ServiceRecord `json:"records"`
}

// Health is the server health report.
type Health struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Vision   bool   `json:"vision"`
}

// =============================================================================
// EXTRACTION OPERATIONS
// =============================================================================

// ExtractPath extracts a document source JSON that already sits on the
// server filesystem.
func (c *Client) ExtractPath(ctx context.Context, path, issuer string) (*ExtractOutcome, error) {
	body := map[string]any{"path": path}
	if issuer != "" {
		body["issuer"] = issuer
	}

	var out ExtractOutcome
	if err := c.do(ctx, http.MethodPost, "/api/v1/extract", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractSource uploads an inline document source for extraction.
func (c *Client) ExtractSource(ctx context.Context, src *models.DocumentSource, issuer string) (*ExtractOutcome, error) {
	body := map[string]any{"source": src}
	if issuer != "" {
		body["issuer"] = issuer
	}

	var out ExtractOutcome
	if err := c.do(ctx, http.MethodPost, "/api/v1/extract", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// ExtractJobOptions configures a background extraction job.
type ExtractJobOptions struct {
	Name      string
	Issuer    string
	Recursive bool
}

// CreateExtractJob starts a background extraction over a directory of
// document sources on the server and returns immediately.
func (c *Client) CreateExtractJob(ctx context.Context, dirPath string, opts ExtractJobOptions) (*Job, error) {
	body := map[string]any{"dir_path": dirPath}
	if opts.Name != "" {
		body["name"] = opts.Name
	}
	if opts.Issuer != "" {
		body["issuer"] = opts.Issuer
	}
	if opts.Recursive {
		body["recursive"] = true
	}

	var job Job
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob retrieves a job by ID. Returns nil when the job does not exist.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &job)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SubscribeJob streams snapshots of one job over a websocket until the
// job reaches a terminal state, invoking onUpdate for each snapshot. The
// terminal snapshot is returned.
func (c *Client) SubscribeJob(ctx context.Context, id string, onUpdate func(Job)) (*Job, error) {
	// Convert the HTTP base to a WebSocket endpoint
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/api/v1/ws/jobs/" + url.PathEscape(id)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &APIError{Status: http.StatusNotFound, Message: "job not found"}
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var job Job
		if err := conn.ReadJSON(&job); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Status.Terminal() {
			return &job, nil
		}
	}
}

// =============================================================================
// CERTIFICATE OPERATIONS
// =============================================================================

// ListCertificates returns stored certificates, optionally filtered by a
// title or issuer substring.
func (c *Client) ListCertificates(ctx context.Context, filter string) ([]Certificate, error) {
	path := "/api/v1/certificates"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}

	var out struct {
		Certificates []Certificate `json:"certificates"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Certificates, nil
}

// GetCertificate retrieves a certificate by ID. Returns nil when it does
// not exist.
func (c *Client) GetCertificate(ctx context.Context, id string) (*Certificate, error) {
	var cert Certificate
	err := c.do(ctx, http.MethodGet, "/api/v1/certificates/"+url.PathEscape(id), nil, &cert)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// DeleteCertificate removes a certificate by ID and reports how many
// were deleted (zero when the ID did not exist).
func (c *Client) DeleteCertificate(ctx context.Context, id string) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/certificates/"+url.PathEscape(id), nil, &out)
	if IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// =============================================================================
// MATCH OPERATIONS
// =============================================================================

// Match evaluates one requirement against the stored certificate pool,
// or against an inline pool when one is given.
func (c *Client) Match(ctx context.Context, req models.Requirement, pool []PoolCertificate) (*models.MatchResult, error) {
	body := map[string]any{"requirement": req}
	if pool != nil {
		body["pool"] = pool
	}

	var result models.MatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/match", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MatchBatch evaluates requirements independently against the same pool.
func (c *Client) MatchBatch(ctx context.Context, reqs []models.Requirement, pool []PoolCertificate) ([]models.MatchResult, error) {
	body := map[string]any{"requirements": reqs}
	if pool != nil {
		body["pool"] = pool
	}

	var out struct {
		Results []models.MatchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/match/batch", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// =============================================================================
// SERVER STATE
// =============================================================================

// Metrics returns the server's pipeline statistics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
