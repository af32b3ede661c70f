package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
	apiInflight      *Gauge
	storeOps         *CounterVec
	storeLatency     *HistogramVec
	storeConflicts   *CounterVec
	storeUnavailable *CounterVec
	created          *CounterVec
	answers          *CounterVec
	scoring          *CounterVec
	overallScore     *HistogramVec
	archived         *CounterVec
	cacheLookups     *CounterVec
	dbStats          *GaugeVec
	redisUp          *Gauge
	redisPing        *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init returns the process-wide metrics registry, or nil when disabled.
// Every Metrics method is safe on a nil receiver.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	return &Metrics{
		apiRequests: NewCounterVec("rd_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("rd_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("rd_api_inflight_requests", "In-flight API requests."),

		storeOps:         NewCounterVec("rd_store_operations_total", "Assessment store operations by op/status.", []string{"op", "status"}),
		storeLatency:     NewHistogramVec("rd_store_operation_duration_seconds", "Assessment store operation latency in seconds.", []string{"op", "status"}, latency),
		storeConflicts:   NewCounterVec("rd_store_version_conflicts_total", "Compare-and-swap version conflicts by op.", []string{"op"}),
		storeUnavailable: NewCounterVec("rd_store_unavailable_total", "Store calls failing as unavailable by op.", []string{"op"}),

		created:      NewCounterVec("rd_assessments_created_total", "Assessments created by type/tier.", []string{"type", "tier"}),
		answers:      NewCounterVec("rd_answers_recorded_total", "Answers recorded by type and path (single or bulk).", []string{"type", "path"}),
		scoring:      NewCounterVec("rd_scoring_outcomes_total", "Scoring attempts by type/outcome.", []string{"type", "outcome"}),
		overallScore: NewHistogramVec("rd_overall_score", "Overall readiness score distribution by type.", []string{"type"}, []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}),
		archived:     NewCounterVec("rd_assessments_archived_total", "Assessments archived by source.", []string{"source"}),
		cacheLookups: NewCounterVec("rd_result_cache_lookups_total", "Result cache lookups by result.", []string{"result"}),

		dbStats:   NewGaugeVec("rd_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("rd_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("rd_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

// Serve exposes the metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, log *logger.Logger, addr string) error {
	addr = strings.TrimSpace(addr)
	if m == nil || addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	if log != nil {
		log.Info("metrics server listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.storeOps, m.storeLatency, m.storeConflicts, m.storeUnavailable,
		m.created, m.answers, m.scoring, m.overallScore, m.archived, m.cacheLookups,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveStoreOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(op, status)
	m.storeLatency.Observe(dur.Seconds(), op, status)
}

func (m *Metrics) IncStoreConflict(op string) {
	if m == nil {
		return
	}
	m.storeConflicts.Inc(op)
}

func (m *Metrics) IncStoreUnavailable(op string) {
	if m == nil {
		return
	}
	m.storeUnavailable.Inc(op)
}

func (m *Metrics) IncAssessmentCreated(typ, tier string) {
	if m == nil {
		return
	}
	m.created.Inc(typ, tier)
}

func (m *Metrics) AddAnswersRecorded(typ, path string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.answers.Add(float64(n), typ, path)
}

// ObserveScoring records one scoring attempt. outcome is "scored" or the
// failure code; the overall score is only observed on success.
func (m *Metrics) ObserveScoring(typ, outcome string, overall float64) {
	if m == nil {
		return
	}
	m.scoring.Inc(typ, outcome)
	if outcome == "scored" {
		m.overallScore.Observe(overall, typ)
	}
}

func (m *Metrics) IncArchived(source string) {
	if m == nil {
		return
	}
	m.archived.Inc(source)
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Inc(result)
}

// RunDBCollector samples connection pool stats until ctx is cancelled.
func (m *Metrics) RunDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) error {
	if m == nil || db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return nil
	}
	ticker := time.NewTicker(collectorInterval(interval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := sqlDB.Stats()
			m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
			m.dbStats.Set(float64(stats.InUse), "in_use")
			m.dbStats.Set(float64(stats.Idle), "idle")
			m.dbStats.Set(float64(stats.WaitCount), "wait_count")
			m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
		}
	}
}

// RunRedisCollector pings rdb on every tick until ctx is cancelled.
func (m *Metrics) RunRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) error {
	if m == nil || rdb == nil {
		return nil
	}
	ticker := time.NewTicker(collectorInterval(interval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sampleRedis(ctx, log, rdb)
		}
	}
}

func (m *Metrics) sampleRedis(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	start := time.Now()
	if err := rdb.Ping(ctx).Err(); err != nil {
		m.redisUp.Set(0)
		if log != nil && ctx.Err() == nil {
			log.Warn("metrics: redis ping failed", "error", err)
		}
		return
	}
	m.redisUp.Set(1)
	m.redisPing.Set(time.Since(start).Seconds())
}

func collectorInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
