// Package api provides the gin REST server: synchronous extraction,
// background extraction jobs with websocket progress, certificate
// management, requirement matching and a metrics snapshot.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/licitia/atesta/internal/config"
	"github.com/licitia/atesta/internal/db"
	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/service"
	"github.com/licitia/atesta/internal/vision"
)

// Server wires the database client, the pipeline services and the job
// manager behind the HTTP routes.
type Server struct {
	cfg           config.Config
	db            *db.Client
	metrics       *metrics.Collector
	extraction    *service.ExtractionService
	match         *service.MatchService
	exporter      *service.Exporter
	jobs          *service.JobManager
	sweeper       *cron.Cron
	engine        *gin.Engine
	visionEnabled bool
}

// NewServer initializes all dependencies and wires the routes. The
// vision provider is optional: when its configuration is incomplete the
// server runs with the vision strategy disabled and logs a warning.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	collector := metrics.NewCollector()

	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: "root",
	}
	dbClient, err := db.NewClient(ctx, dbCfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("create database client: %w", err)
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		_ = dbClient.Close(ctx)
		return nil, fmt.Errorf("init schema: %w", err)
	}

	var provider extract.VisionProvider
	visionEnabled := false
	if p, verr := vision.NewProvider(cfg); verr != nil {
		slog.Warn("vision provider unavailable, image-only documents will fail", "provider", cfg.VisionProvider, "error", verr)
	} else {
		provider = p
		visionEnabled = true
	}

	pipelineCfg := extract.DefaultConfig()
	pipelineCfg.AcceptThreshold = cfg.AcceptThreshold
	pipelineCfg.MergeThreshold = cfg.MergeThreshold
	pipelineCfg.StrictCodes = cfg.StrictCodes
	pipelineCfg.VisionBatchPages = cfg.VisionBatchPages
	pipelineCfg.VisionTimeout = cfg.VisionTimeout

	extraction := service.NewExtractionService(dbClient, pipelineCfg, provider, collector)
	jobManager := service.NewJobManager(cfg.JobConcurrency, dbClient)

	if err := jobManager.ResumeIncompleteJobs(ctx, extraction); err != nil {
		slog.Warn("failed to resume incomplete jobs", "error", err)
	}

	s := &Server{
		cfg:           cfg,
		db:            dbClient,
		metrics:       collector,
		extraction:    extraction,
		match:         service.NewMatchService(dbClient, collector),
		exporter:      service.NewExporter(collector),
		jobs:          jobManager,
		visionEnabled: visionEnabled,
	}
	s.engine = s.buildEngine()
	s.startSweeper()

	return s, nil
}

// Engine returns the configured gin handler.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Close stops the sweeper and closes the database connection.
func (s *Server) Close(ctx context.Context) error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.db != nil {
		return s.db.Close(ctx)
	}
	return nil
}

// WipeData removes all certificates and jobs.
func (s *Server) WipeData(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("no database configured")
	}
	return s.db.WipeData(ctx)
}

func (s *Server) buildEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(), Recovery())

	api := r.Group("/api/v1")
	{
		api.POST("/extract", s.handleExtract)

		api.POST("/jobs", s.handleCreateJob)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/jobs/:id", s.handleGetJob)
		api.GET("/ws/jobs/:id", s.handleJobSocket)

		api.GET("/certificates", s.handleListCertificates)
		api.GET("/certificates/:id", s.handleGetCertificate)
		api.DELETE("/certificates/:id", s.handleDeleteCertificate)

		api.POST("/match", s.handleMatch)
		api.POST("/match/batch", s.handleMatchBatch)

		api.GET("/metrics", s.handleMetrics)
		api.GET("/health", s.handleHealth)
	}

	return r
}

// startSweeper schedules the stale-job sweep. Jobs stuck in running
// state longer than the configured age are marked failed so a crashed
// worker never leaves a job running forever.
func (s *Server) startSweeper() {
	if s.db == nil {
		return
	}

	c := cron.New()
	_, err := c.AddFunc(s.cfg.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := s.db.FailStaleJobs(ctx, s.cfg.StaleJobAge)
		if err != nil {
			slog.Warn("stale job sweep failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("stale job sweep", "jobs_failed", n, "older_than", s.cfg.StaleJobAge)
		}
	})
	if err != nil {
		slog.Warn("invalid sweep schedule, sweeper disabled", "schedule", s.cfg.SweepSchedule, "error", err)
		return
	}

	c.Start()
	s.sweeper = c
	slog.Info("stale job sweeper started", "schedule", s.cfg.SweepSchedule, "stale_after", s.cfg.StaleJobAge)
}
