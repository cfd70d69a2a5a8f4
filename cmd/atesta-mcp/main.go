// Package main provides the entry point for the atesta MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/licitia/atesta/internal/config"
	"github.com/licitia/atesta/internal/db"
	"github.com/licitia/atesta/internal/extract"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/server"
	"github.com/licitia/atesta/internal/service"
	"github.com/licitia/atesta/internal/tools"
	"github.com/licitia/atesta/internal/vision"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	// Log startup info
	logger.Info("atesta-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"vision_provider", cfg.VisionProvider,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: "root",
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(ctx)
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Create the extraction pipeline. The vision provider is optional:
	// without it image-only documents fail with a diagnostic.
	var provider extract.VisionProvider
	if p, verr := vision.NewProvider(cfg); verr != nil {
		logger.Warn("vision provider unavailable", "provider", cfg.VisionProvider, "error", verr)
	} else {
		provider = p
		logger.Info("vision provider initialized", "provider", cfg.VisionProvider, "model", cfg.VisionModel)
	}

	pipelineCfg := extract.DefaultConfig()
	pipelineCfg.AcceptThreshold = cfg.AcceptThreshold
	pipelineCfg.MergeThreshold = cfg.MergeThreshold
	pipelineCfg.StrictCodes = cfg.StrictCodes
	pipelineCfg.VisionBatchPages = cfg.VisionBatchPages
	pipelineCfg.VisionTimeout = cfg.VisionTimeout

	collector := metrics.NewCollector()
	extraction := service.NewExtractionService(dbClient, pipelineCfg, provider, collector)

	// Create and setup server
	srv := server.New(version, logger)
	srv.Setup()

	// Register tools
	deps := &tools.Dependencies{
		DB:         dbClient,
		Extraction: extraction,
		Match:      service.NewMatchService(dbClient, collector),
		Metrics:    collector,
		Logger:     logger,
	}
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("tools registered", "count", 7)

	// Log ready state
	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
