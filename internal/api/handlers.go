package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licitia/atesta/internal/models"
	"github.com/licitia/atesta/internal/normalize"
	"github.com/licitia/atesta/internal/service"
)

// jobResponse is the wire shape of a job snapshot.
type jobResponse struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Status      service.JobStatus    `json:"status"`
	Name        string               `json:"name,omitempty"`
	Progress    int                  `json:"progress"`
	Total       int                  `json:"total"`
	Result      *service.BatchResult `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	DirPath     string               `json:"dir_path,omitempty"`
}

func toJobResponse(j *service.Job) jobResponse {
	snap := j.Snapshot()
	return jobResponse{
		ID:          snap.ID,
		Type:        snap.Type,
		Status:      snap.Status,
		Name:        snap.Name,
		Progress:    snap.Progress,
		Total:       snap.Total,
		Result:      snap.Result,
		Error:       snap.Error,
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
		DirPath:     snap.DirPath,
	}
}

// certificateResponse is the wire shape of a stored certificate. The
// record ID travels as a plain string.
type certificateResponse struct {
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

func toCertificateResponse(c *models.Certificate) certificateResponse {
	return certificateResponse{
		ID:          c.Ref(),
		Title:       c.Title,
		Issuer:      c.Issuer,
		SourcePath:  c.SourcePath,
		Records:     c.Records,
		Quality:     c.Quality,
		Strategy:    c.Strategy,
		Diagnostics: c.Diagnostics,
		Created:     c.Created,
		Updated:     c.Updated,
	}
}

// extractResponse is the wire shape of one extraction outcome.
type extractResponse struct {
	SourcePath  string                  `json:"source_path,omitempty"`
	Result      models.ExtractionResult `json:"result"`
	Certificate *certificateResponse    `json:"certificate,omitempty"`
	Created     bool                    `json:"created,omitempty"`
}

func toExtractResponse(o *service.ExtractOutcome) extractResponse {
	resp := extractResponse{
		SourcePath: o.SourcePath,
		Result:     o.Result,
		Created:    o.Created,
	}
	if o.Certificate != nil {
		cert := toCertificateResponse(o.Certificate)
		resp.Certificate = &cert
	}
	return resp
}

type extractRequest struct {
	// Path points at a document source JSON on the server filesystem.
	Path string `json:"path,omitempty"`
	// Source is an inline document source; exactly one of Path and
	// Source must be set.
	Source *models.DocumentSource `json:"source,omitempty"`
	Issuer string                 `json:"issuer,omitempty"`
}

// handleExtract runs the cascade synchronously on one document source.
func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if (req.Path == "") == (req.Source == nil) {
		badRequest(c, errors.New("provide exactly one of path or source"))
		return
	}

	src := req.Source
	sourcePath := ""
	if req.Path != "" {
		loaded, err := s.extraction.LoadSource(req.Path)
		if err != nil {
			badRequest(c, err)
			return
		}
		src = loaded
		sourcePath = req.Path
	}
	if len(src.Pages) == 0 {
		badRequest(c, errors.New("source has no pages"))
		return
	}

	outcome, err := s.extraction.ExtractSource(c.Request.Context(), src, sourcePath, service.ExtractOptions{Issuer: req.Issuer})
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExtractResponse(outcome))
}

type createJobRequest struct {
	DirPath   string `json:"dir_path"`
	Name      string `json:"name,omitempty"`
	Issuer    string `json:"issuer,omitempty"`
	Recursive bool   `json:"recursive,omitempty"`
}

// handleCreateJob starts a background batch extraction over a server
// directory of document sources.
func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.DirPath == "" {
		badRequest(c, errors.New("dir_path is required"))
		return
	}

	job, err := s.extraction.ExtractDirectoryAsync(c.Request.Context(), s.jobs, req.DirPath, req.Name, service.ExtractOptions{
		Issuer:    req.Issuer,
		Recursive: req.Recursive,
	})
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toJobResponse(job))
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs := s.jobs.ListJobs()
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out, "total": len(out)})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobs.GetJob(c.Param("id"))
	if job == nil {
		notFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListCertificates(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	certs, err := s.db.ListCertificates(c.Request.Context(), c.Query("filter"))
	if err != nil {
		serverError(c, err)
		return
	}
	out := make([]certificateResponse, 0, len(certs))
	for i := range certs {
		out = append(out, toCertificateResponse(&certs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"certificates": out, "total": len(out)})
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	cert, err := s.db.GetCertificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		serverError(c, err)
		return
	}
	if cert == nil {
		notFound(c, "certificate not found")
		return
	}
	c.JSON(http.StatusOK, toCertificateResponse(cert))
}

func (s *Server) handleDeleteCertificate(c *gin.Context) {
	if !s.requireDB(c) {
		return
	}
	count, err := s.db.DeleteCertificates(c.Request.Context(), c.Param("id"))
	if err != nil {
		serverError(c, err)
		return
	}
	if count == 0 {
		notFound(c, "certificate not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": count})
}

// poolCertificate is an inline pool entry. Match results reference the
// entry by title.
type poolCertificate struct {
	Title   string                 `json:"title"`
	Issuer  string                 `json:"issuer,omitempty"`
	Records []models.ServiceRecord `json:"records"`
}

// toPool converts inline entries, preserving the nil/empty distinction
// that decides between the stored pool and an override. Inline records
// arrive raw, so the normalized fields the engine matches on are filled
// in here when absent.
func toPool(in []poolCertificate) []models.Certificate {
	if in == nil {
		return nil
	}
	out := make([]models.Certificate, len(in))
	for i, p := range in {
		records := make([]models.ServiceRecord, len(p.Records))
		for j, r := range p.Records {
			if r.NormalizedDescription == "" {
				r.NormalizedDescription = normalize.Description(r.Description)
			}
			if r.CanonicalUnit == "" {
				r.CanonicalUnit = normalize.Unit(r.Unit)
			}
			records[j] = r
		}
		out[i] = models.Certificate{Title: p.Title, Issuer: p.Issuer, Records: records}
	}
	return out
}

type matchRequest struct {
	Requirement models.Requirement `json:"requirement"`
	// Pool overrides the stored certificate pool when present. An
	// explicit empty list matches against nothing; omitting the field
	// loads the pool from the store.
	Pool []poolCertificate `json:"pool,omitempty"`
}

func (s *Server) handleMatch(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.match.MatchRequirement(c.Request.Context(), req.Requirement, toPool(req.Pool))
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type matchBatchRequest struct {
	Requirements []models.Requirement `json:"requirements"`
	Pool         []poolCertificate    `json:"pool,omitempty"`
}

func (s *Server) handleMatchBatch(c *gin.Context) {
	var req matchBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	results, err := s.match.MatchRequirements(c.Request.Context(), req.Requirements, toPool(req.Pool))
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": s.db != nil,
		"vision":   s.visionEnabled,
	})
}

func (s *Server) requireDB(c *gin.Context) bool {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

func serverError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
