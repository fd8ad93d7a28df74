package api

import (
	"net/http"
	"sync"
	"time"
)

// RouteMetrics aggregates request counts and latency for one method+path.
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"totalTime"`
	AvgTime     time.Duration `json:"avgTime"`
	MaxTime     time.Duration `json:"maxTime"`
	LastRequest time.Time     `json:"lastRequest"`
}

// MetricsCollector keeps per-route request metrics in memory. Exposed via the
// /api/v1/metrics debug endpoint.
type MetricsCollector struct {
	mu     sync.RWMutex
	routes map[string]*RouteMetrics
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{routes: make(map[string]*RouteMetrics)}
}

// Record folds one completed request into the aggregate for its route.
func (c *MetricsCollector) Record(method, path string, status int, d time.Duration) {
	key := method + " " + path
	c.mu.Lock()
	defer c.mu.Unlock()

	rm := c.routes[key]
	if rm == nil {
		rm = &RouteMetrics{Method: method, Path: path}
		c.routes[key] = rm
	}
	rm.Count++
	if status >= 500 {
		rm.ErrorCount++
	}
	rm.TotalTime += d
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if d > rm.MaxTime {
		rm.MaxTime = d
	}
	rm.LastRequest = time.Now()
}

// Snapshot returns a copy of all route metrics.
func (c *MetricsCollector) Snapshot() []RouteMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]RouteMetrics, 0, len(c.routes))
	for _, rm := range c.routes {
		out = append(out, *rm)
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records timing and status for every request passing
// through it.
func (c *MetricsCollector) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		c.Record(r.Method, r.URL.Path, sr.status, time.Since(start))
	})
}
