package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	conflictsDetected  *prometheus.CounterVec
	entryMutations     *prometheus.CounterVec
	lockWait           *prometheus.HistogramVec
	generationDuration *prometheus.HistogramVec
	unplacedUnits      prometheus.Counter
	substitutes        prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	generationCount      uint64
	unplacedCount        uint64
	substituteCount      uint64

	conflictMu     sync.Mutex
	conflictCounts map[string]uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts reported to callers, by rule",
	}, []string{"type"})

	entryMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_entry_mutations_total",
		Help: "Schedule entry writes by operation",
	}, []string{"operation"})

	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_lock_wait_seconds",
		Help:    "Time spent waiting for a week lock",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"scope"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of timetable generation runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	unplacedUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_generation_unplaced_units_total",
		Help: "Lesson units the generator could not place",
	})

	substitutes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_substitute_assignments_total",
		Help: "Substitute assignments written",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		conflictsDetected, entryMutations, lockWait, generationDuration, unplacedUnits, substitutes, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		conflictsDetected:  conflictsDetected,
		entryMutations:     entryMutations,
		lockWait:           lockWait,
		generationDuration: generationDuration,
		unplacedUnits:      unplacedUnits,
		substitutes:        substitutes,
		conflictCounts:     make(map[string]uint64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordConflicts counts conflicts surfaced to callers.
func (m *MetricsService) RecordConflicts(conflicts []models.Conflict) {
	if m == nil || len(conflicts) == 0 {
		return
	}
	m.conflictMu.Lock()
	defer m.conflictMu.Unlock()
	for _, c := range conflicts {
		m.conflictsDetected.WithLabelValues(string(c.Type)).Inc()
		m.conflictCounts[string(c.Type)]++
	}
}

// RecordMutation counts a successful entry write.
func (m *MetricsService) RecordMutation(operation string) {
	if m == nil {
		return
	}
	m.entryMutations.WithLabelValues(operation).Inc()
}

// ObserveLockWait records time spent acquiring a lock.
func (m *MetricsService) ObserveLockWait(scope string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(scope).Observe(duration.Seconds())
}

// ObserveGeneration records a generator run.
func (m *MetricsService) ObserveGeneration(outcome string, duration time.Duration, unplaced int) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.generationCount, 1)
	if unplaced > 0 {
		m.unplacedUnits.Add(float64(unplaced))
		atomic.AddUint64(&m.unplacedCount, uint64(unplaced))
	}
}

// RecordSubstituteAssignment counts a written substitute overlay.
func (m *MetricsService) RecordSubstituteAssignment() {
	if m == nil {
		return
	}
	m.substitutes.Inc()
	atomic.AddUint64(&m.substituteCount, 1)
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.conflictMu.Lock()
	conflicts := make(map[string]uint64, len(m.conflictCounts))
	for k, v := range m.conflictCounts {
		conflicts[k] = v
	}
	m.conflictMu.Unlock()

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		ConflictsDetected:        conflicts,
		GenerationRuns:           atomic.LoadUint64(&m.generationCount),
		UnplacedUnits:            atomic.LoadUint64(&m.unplacedCount),
		SubstituteAssignments:    atomic.LoadUint64(&m.substituteCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
