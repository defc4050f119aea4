package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/asset-registry/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	opOutcomes  *CounterVec
	opLatency   *HistogramVec
	lockEvents  *CounterVec
	mutexWait   *HistogramVec
	mutexFailed *CounterVec

	dbUp      *Gauge
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered Metrics set.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("registry_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"registry_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("registry_api_inflight_requests", "In-flight API requests."),
		opOutcomes:  NewCounterVec("registry_operations_total", "Coordinator calls by op code and outcome.", []string{"op_code", "outcome"}),
		opLatency: NewHistogramVec(
			"registry_operation_duration_seconds",
			"Coordinator call latency in seconds by op code.",
			[]string{"op_code"},
			nil,
		),
		lockEvents: NewCounterVec("registry_lock_transitions_total", "Lock state transitions by verb and resulting state.", []string{"verb", "state"}),
		mutexWait: NewHistogramVec(
			"registry_mutex_wait_seconds",
			"Time spent acquiring the per-asset mutex.",
			[]string{"purpose"},
			[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
		),
		mutexFailed: NewCounterVec("registry_mutex_unavailable_total", "Mutex acquisitions that gave up.", []string{"purpose"}),
		dbUp:        NewGauge("registry_db_up", "Database reachable (1) or not (0)."),
		redisUp:     NewGauge("registry_redis_up", "Redis reachable (1) or not (0)."),
		redisPing:   NewGauge("registry_redis_ping_seconds", "Last redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
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
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.opOutcomes, m.opLatency, m.lockEvents,
		m.mutexWait, m.mutexFailed,
		m.dbUp, m.redisUp, m.redisPing,
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
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveOperation records one coordinator call. outcome is "new", "replay"
// or an error code.
func (m *Metrics) ObserveOperation(opCode, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.opOutcomes.Inc(opCode, outcome)
	m.opLatency.Observe(dur.Seconds(), opCode)
}

func (m *Metrics) IncLockTransition(verb, state string) {
	if m == nil {
		return
	}
	m.lockEvents.Inc(verb, state)
}

func (m *Metrics) ObserveMutexWait(purpose string, dur time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.mutexWait.Observe(dur.Seconds(), purpose)
	if !ok {
		m.mutexFailed.Inc(purpose)
	}
}

func (m *Metrics) OperationCount(opCode, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.opOutcomes.Value(opCode, outcome)
}

func (m *Metrics) LockTransitionCount(verb, state string) float64 {
	if m == nil {
		return 0
	}
	return m.lockEvents.Value(verb, state)
}

func scrapeInterval() time.Duration {
	if v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 15 * time.Second
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db handle unavailable", "error", err)
		}
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sqlDB.PingContext(ctx); err != nil {
					m.dbUp.Set(0)
					continue
				}
				m.dbUp.Set(1)
			}
		}
	}()
}

// StartRedisCollector pings the shared client; it does not own or close it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(scrapeInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
