package models

import "time"

// SystemMetrics is a lightweight snapshot of engine counters.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	ConflictsDetected        map[string]uint64 `json:"conflicts_detected"`
	GenerationRuns           uint64            `json:"generation_runs"`
	UnplacedUnits            uint64            `json:"unplaced_units"`
	SubstituteAssignments    uint64            `json:"substitute_assignments"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
