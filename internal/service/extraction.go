// Package service provides business logic for the extraction pipeline,
// requirement matching and report export.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/licitia/atesta/internal/db"
	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/vision"
)

// ExtractionService runs the strategy cascade over document sources and
// persists the resulting certificates when a database is configured.
type ExtractionService struct {
	db      *db.Client
	cascade *extract.Cascade
	metrics *metrics.Collector
}

// NewExtractionService creates a new extraction service. dbClient may be
// nil (no persistence), provider may be nil (no vision strategy) and
// collector may be nil (no instrumentation).
func NewExtractionService(dbClient *db.Client, cfg extract.Config, provider extract.VisionProvider, collector *metrics.Collector) *ExtractionService {
	if provider != nil && collector != nil {
		provider = &meteredVision{inner: provider, metrics: collector}
	}
	return &ExtractionService{
		db:      dbClient,
		cascade: extract.NewCascade(cfg, provider),
		metrics: collector,
	}
}

// ExtractOptions configures source extraction.
type ExtractOptions struct {
	// Issuer stamps every certificate built in this run.
	Issuer string
	// Recursive processes subdirectories when collecting sources.
	Recursive bool
	// Concurrency sets number of parallel workers (default 4)
	Concurrency int
}

// ExtractOutcome is the result of extracting one document source.
type ExtractOutcome struct {
	SourcePath  string                  `json:"source_path,omitempty"`
	Result      models.ExtractionResult `json:"result"`
	Certificate *models.Certificate     `json:"certificate,omitempty"`
	Created     bool                    `json:"created,omitempty"`
}

// BatchResult summarizes a batch extraction run.
type BatchResult struct {
	SourcesProcessed   int      `json:"sources_processed"`
	CertificatesStored int      `json:"certificates_stored"`
	RecordsExtracted   int      `json:"records_extracted"`
	Errors             []string `json:"errors,omitempty"`
}

// LoadSource reads a document source from a JSON file. Page images are
// base64 fields in the JSON and arrive decoded. The source name defaults
// to the file name when absent.
func (s *ExtractionService) LoadSource(path string) (*models.DocumentSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	var src models.DocumentSource
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse source %s: %w", filepath.Base(path), err)
	}
	if len(src.Pages) == 0 {
		return nil, fmt.Errorf("source %s has no pages", filepath.Base(path))
	}
	if src.Name == "" {
		src.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &src, nil
}

// ExtractSource runs the full pipeline on one source and persists the
// certificate when a database is configured. sourcePath may be empty for
// sources that did not come from disk.
func (s *ExtractionService) ExtractSource(ctx context.Context, src *models.DocumentSource, sourcePath string, opts ExtractOptions) (*ExtractOutcome, error) {
	start := time.Now()
	result, err := s.cascade.Extract(ctx, src)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpExtraction, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.Name, err)
	}
	if s.metrics != nil && !result.Empty() {
		s.metrics.RecordStrategyWin(string(result.Strategy))
	}

	outcome := &ExtractOutcome{SourcePath: sourcePath, Result: result}
	if s.db == nil {
		return outcome, nil
	}

	input := models.CertificateInput{
		Title:       src.Name,
		Issuer:      opts.Issuer,
		SourcePath:  sourcePath,
		Records:     result.Records,
		Quality:     result.Quality,
		Strategy:    result.Strategy,
		Diagnostics: result.Diagnostics,
	}
	dbStart := time.Now()
	cert, created, err := s.db.UpsertCertificate(ctx, models.Slugify(src.Name), input)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(dbStart))
	}
	if err != nil {
		return nil, fmt.Errorf("store certificate: %w", err)
	}
	outcome.Certificate = cert
	outcome.Created = created
	slog.Info("certificate stored",
		"title", cert.Title,
		"records", len(cert.Records),
		"quality", fmt.Sprintf("%.2f", cert.Quality),
		"strategy", cert.Strategy,
		"created", created)
	return outcome, nil
}

// ExtractFile loads a source file and extracts it.
func (s *ExtractionService) ExtractFile(ctx context.Context, path string, opts ExtractOptions) (*ExtractOutcome, error) {
	src, err := s.LoadSource(path)
	if err != nil {
		return nil, err
	}
	return s.ExtractSource(ctx, src, path, opts)
}

// CollectSources walks a directory and returns all JSON source files.
func (s *ExtractionService) CollectSources(dirPath string, recursive bool) ([]string, error) {
	var sources []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !recursive && path != dirPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			sources = append(sources, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return sources, nil
}

// ProcessSources processes a list of source files with job manager
// integration. Used for both new jobs and resumed jobs. A fatal provider
// error (billing, auth) aborts the whole run; any other per-source error
// is collected and processing continues.
func (s *ExtractionService) ProcessSources(ctx context.Context, jobManager *JobManager, job *Job, sources []string, opts ExtractOptions) (*BatchResult, error) {
	totalSources := len(sources)
	if job != nil {
		totalSources = job.Total // original total for resumed jobs
	}
	return s.processSourcesInternal(ctx, jobManager, job, sources, totalSources, opts)
}

func (s *ExtractionService) processSourcesInternal(ctx context.Context, jobManager *JobManager, job *Job, sources []string, totalSources int, opts ExtractOptions) (*BatchResult, error) {
	slog.Info("starting source processing", "sources", len(sources), "total", totalSources, "concurrency", opts.Concurrency)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	// Starting progress for resumed jobs
	startProgress := totalSources - len(sources)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sourcesProcessed atomic.Int32
		certsStored      atomic.Int32
		recordsTotal     atomic.Int32
		errorsMu         sync.Mutex
		errs             []string
		fatalErr         error
	)

	sourceChan := make(chan string, len(sources))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for source := range sourceChan {
				if ctx.Err() != nil {
					return
				}

				processed := sourcesProcessed.Add(1)
				currentProgress := startProgress + int(processed)
				slog.Info("processing source", "worker", workerID, "source", filepath.Base(source), "progress", fmt.Sprintf("%d/%d", currentProgress, totalSources))

				if jobManager != nil && job != nil {
					jobManager.UpdateProgress(ctx, job, currentProgress, totalSources)
				}

				outcome, err := s.ExtractFile(ctx, source, opts)
				if err != nil {
					// Fatal API errors (billing, auth) stop the run
					// instead of burning through the queue.
					if errors.Is(err, vision.ErrFatalAPI) {
						errorsMu.Lock()
						if fatalErr == nil {
							fatalErr = err
						}
						errorsMu.Unlock()
						cancel()
						return
					}
					errorsMu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", source, err))
					errorsMu.Unlock()
					continue
				}

				recordsTotal.Add(int32(len(outcome.Result.Records)))
				if outcome.Certificate != nil {
					certsStored.Add(1)
				}
			}
		}(i)
	}

	for _, source := range sources {
		sourceChan <- source
	}
	close(sourceChan)

	wg.Wait()

	if fatalErr != nil {
		return nil, fmt.Errorf("batch aborted: %w", fatalErr)
	}

	slog.Info("source processing complete",
		"processed", sourcesProcessed.Load(),
		"stored", certsStored.Load(),
		"records", recordsTotal.Load(),
		"errors", len(errs))

	return &BatchResult{
		SourcesProcessed:   int(sourcesProcessed.Load()),
		CertificatesStored: int(certsStored.Load()),
		RecordsExtracted:   int(recordsTotal.Load()),
		Errors:             errs,
	}, nil
}

// ExtractDirectory extracts all JSON sources from a directory
// synchronously.
func (s *ExtractionService) ExtractDirectory(ctx context.Context, dirPath string, opts ExtractOptions) (*BatchResult, error) {
	sources, err := s.CollectSources(dirPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	return s.processSourcesInternal(ctx, nil, nil, sources, len(sources), opts)
}

// ExtractDirectoryAsync starts an async extraction job with persistence.
func (s *ExtractionService) ExtractDirectoryAsync(ctx context.Context, jobManager *JobManager, dirPath, name string, opts ExtractOptions) (*Job, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", dirPath)
	}

	// Collect sources upfront so the job carries a deterministic list
	// for resume.
	sources, err := s.CollectSources(dirPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no JSON sources found in %s", dirPath)
	}

	persistOpts := map[string]any{
		"issuer":    opts.Issuer,
		"recursive": opts.Recursive,
	}

	job, err := jobManager.CreateJob(ctx, "extract", name, dirPath, sources, persistOpts)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	opts.Concurrency = jobManager.Concurrency()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("extraction job goroutine panicked", "job_id", job.ID, "panic", r)
				jobManager.Fail(context.Background(), job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		bgCtx := context.Background()
		jobManager.SetRunning(bgCtx, job)

		result, err := s.ProcessSources(bgCtx, jobManager, job, sources, opts)
		if err != nil {
			jobManager.Fail(bgCtx, job, err)
			return
		}
		jobManager.Complete(bgCtx, job, result)
	}()

	return job, nil
}

// meteredVision wraps a vision provider and records call metrics. The
// escalation prompt is recognized by comparison so escalations get
// counted separately.
type meteredVision struct {
	inner   extract.VisionProvider
	metrics *metrics.Collector
}

func (m *meteredVision) ExtractTable(ctx context.Context, images [][]byte, prompt string) ([]models.VisionRow, error) {
	if prompt == m.inner.EscalationPrompt() {
		m.metrics.RecordEscalation()
	}
	start := time.Now()
	rows, err := m.inner.ExtractTable(ctx, images, prompt)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordVisionUsage(metrics.OpVisionCall, time.Since(start), int64(len(images)), int64(len(rows)))
	return rows, nil
}

func (m *meteredVision) TablePrompt() string { return m.inner.TablePrompt() }

func (m *meteredVision) EscalationPrompt() string { return m.inner.EscalationPrompt() }
