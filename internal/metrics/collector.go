// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Page and row volumes (only for vision operations)
	TotalPages int64
	TotalRows  int64
	MinPages   int64
	MaxPages   int64
	MinRows    int64
	MaxRows    int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	// Volume stats (nil if not applicable)
	TotalPages *int64   `json:"total_pages,omitempty"`
	TotalRows  *int64   `json:"total_rows,omitempty"`
	AvgPages   *float64 `json:"avg_pages,omitempty"`
	AvgRows    *float64 `json:"avg_rows,omitempty"`
	MinPages   *int64   `json:"min_pages,omitempty"`
	MaxPages   *int64   `json:"max_pages,omitempty"`
	MinRows    *int64   `json:"min_rows,omitempty"`
	MaxRows    *int64   `json:"max_rows,omitempty"`
}

// Snapshot represents the full pipeline statistics at a point in time.
type Snapshot struct {
	UptimeSeconds     float64            `json:"uptime_seconds"`
	Extraction        *OperationSnapshot `json:"extraction,omitempty"`
	VisionCall        *OperationSnapshot `json:"vision_call,omitempty"`
	Match             *OperationSnapshot `json:"match,omitempty"`
	DBQuery           *OperationSnapshot `json:"db_query,omitempty"`
	Export            *OperationSnapshot `json:"export,omitempty"`
	StrategyWins      map[string]int64   `json:"strategy_wins,omitempty"`
	VisionEscalations int64              `json:"vision_escalations"`
}

// Operation names for the collector.
const (
	OpExtraction = "extraction"
	OpVisionCall = "vision_call"
	OpMatch      = "match"
	OpDBQuery    = "db_query"
	OpExport     = "export"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu          sync.RWMutex
	startTime   time.Time
	ops         map[string]*OperationMetrics
	wins        map[string]int64
	escalations int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		wins:      make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:  time.Duration(math.MaxInt64),
			MinPages: math.MaxInt64,
			MinRows:  math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordVisionUsage records timing and volume for a vision-model call.
func (c *Collector) RecordVisionUsage(op string, duration time.Duration, pages, rows int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalPages += pages
	m.TotalRows += rows

	if pages < m.MinPages {
		m.MinPages = pages
	}
	if pages > m.MaxPages {
		m.MaxPages = pages
	}
	if rows < m.MinRows {
		m.MinRows = rows
	}
	if rows > m.MaxRows {
		m.MaxRows = rows
	}
}

// RecordStrategyWin counts how often each extraction strategy produced
// the accepted result.
func (c *Collector) RecordStrategyWin(strategy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wins[strategy]++
}

// RecordEscalation counts strict-prompt vision retries.
func (c *Collector) RecordEscalation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.escalations++
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeVolumes bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeVolumes && (m.TotalPages > 0 || m.TotalRows > 0) {
		totalPages := m.TotalPages
		totalRows := m.TotalRows
		avgPages := float64(m.TotalPages) / float64(m.Count)
		avgRows := float64(m.TotalRows) / float64(m.Count)
		minPages := m.MinPages
		maxPages := m.MaxPages
		minRows := m.MinRows
		maxRows := m.MaxRows

		// Reset sentinel values for display
		if minPages == math.MaxInt64 {
			minPages = 0
		}
		if minRows == math.MaxInt64 {
			minRows = 0
		}

		snap.TotalPages = &totalPages
		snap.TotalRows = &totalRows
		snap.AvgPages = &avgPages
		snap.AvgRows = &avgRows
		snap.MinPages = &minPages
		snap.MaxPages = &maxPages
		snap.MinRows = &minRows
		snap.MaxRows = &maxRows
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	wins := make(map[string]int64, len(c.wins))
	for k, v := range c.wins {
		wins[k] = v
	}

	return Snapshot{
		UptimeSeconds:     time.Since(c.startTime).Seconds(),
		Extraction:        snapshotOp(c.ops[OpExtraction], false),
		VisionCall:        snapshotOp(c.ops[OpVisionCall], true),
		Match:             snapshotOp(c.ops[OpMatch], false),
		DBQuery:           snapshotOp(c.ops[OpDBQuery], false),
		Export:            snapshotOp(c.ops[OpExport], false),
		StrategyWins:      wins,
		VisionEscalations: c.escalations,
	}
}
