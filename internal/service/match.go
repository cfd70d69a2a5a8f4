package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/licitia/atesta/internal/db"
	"github.com/licitia/atesta/internal/match"
	"github.com/licitia/atesta/internal/metrics"
	"github.com/licitia/atesta/internal/models"
)

// MatchService evaluates requirements against the stored certificate
// pool.
type MatchService struct {
	db      *db.Client
	metrics *metrics.Collector
}

// NewMatchService creates a new match service. collector may be nil.
func NewMatchService(dbClient *db.Client, collector *metrics.Collector) *MatchService {
	return &MatchService{db: dbClient, metrics: collector}
}

// LoadPool fetches the full certificate pool from the store.
func (s *MatchService) LoadPool(ctx context.Context) ([]models.Certificate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("no database configured")
	}
	start := time.Now()
	pool, err := s.db.ListCertificates(ctx, "")
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("load certificate pool: %w", err)
	}
	return pool, nil
}

// MatchRequirement evaluates one requirement. A nil pool loads the
// stored pool; a non-nil pool (possibly empty) is used as-is, which lets
// callers override the store with an inline pool.
func (s *MatchService) MatchRequirement(ctx context.Context, req models.Requirement, pool []models.Certificate) (models.MatchResult, error) {
	if req.Description == "" {
		return models.MatchResult{}, fmt.Errorf("requirement has no description")
	}
	if pool == nil {
		var err error
		pool, err = s.LoadPool(ctx)
		if err != nil {
			return models.MatchResult{}, err
		}
	}
	start := time.Now()
	result := match.Match(req, pool)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpMatch, time.Since(start))
	}
	return result, nil
}

// MatchRequirements evaluates requirements independently against the
// same pool. A nil pool loads the stored pool once for all of them.
func (s *MatchService) MatchRequirements(ctx context.Context, reqs []models.Requirement, pool []models.Certificate) ([]models.MatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no requirements given")
	}
	if pool == nil {
		var err error
		pool, err = s.LoadPool(ctx)
		if err != nil {
			return nil, err
		}
	}
	start := time.Now()
	results := match.MatchAll(reqs, pool)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpMatch, time.Since(start))
	}
	return results, nil
}

// LoadRequirements reads requirements from a YAML file. The file is
// either a bare list of requirement objects or a document with a
// top-level "requirements" key.
func LoadRequirements(path string) ([]models.Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}

	var reqs []models.Requirement
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		var wrapper struct {
			Requirements []models.Requirement `yaml:"requirements"`
		}
		if werr := yaml.Unmarshal(data, &wrapper); werr != nil || len(wrapper.Requirements) == 0 {
			return nil, fmt.Errorf("parse requirements: %w", err)
		}
		reqs = wrapper.Requirements
	}

	if len(reqs) == 0 {
		return nil, fmt.Errorf("no requirements in %s", path)
	}
	for i, r := range reqs {
		if r.Description == "" {
			return nil, fmt.Errorf("requirement %d has no description", i+1)
		}
	}
	return reqs, nil
}
