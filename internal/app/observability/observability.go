package observability

import (
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulodtn/exames-customizados-poc/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

// Collector keeps in-process request counters and writes one access log line per request.
type Collector struct {
	db  *sql.DB
	log *logger.Logger

	mu           sync.RWMutex
	requestStats map[key]stat
	cascades     map[string]cascadeStat
	startedAt    time.Time
}

type cascadeStat struct {
	Writes int64
	Rows   int64
}

func NewCollector(db *sql.DB, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Collector{
		db:           db,
		log:          log,
		requestStats: make(map[key]stat),
		cascades:     make(map[string]cascadeStat),
		startedAt:    time.Now(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := routePath(r)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		c.log.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"exam_id", extractExamID(r.URL.Path),
			"method", r.Method,
			"path", path,
			"status", rec.status,
			"latency_ms", latencyMS,
			"remote_ip", strings.TrimSpace(r.RemoteAddr),
		)
	})
}

// RecordCascade counts one committed cascade write and the child rows it touched.
func (c *Collector) RecordCascade(kind string, rows int64) {
	c.mu.Lock()
	cs := c.cascades[kind]
	cs.Writes++
	cs.Rows += rows
	c.cascades[kind] = cs
	c.mu.Unlock()
}

type exposition struct {
	sb strings.Builder
}

func (e *exposition) help(name, typ, text string) {
	fmt.Fprintf(&e.sb, "# HELP %s %s\n# TYPE %s %s\n", name, text, name, typ)
}

func (e *exposition) sample(name, labels string, v float64) {
	if labels != "" {
		name += "{" + labels + "}"
	}
	fmt.Fprintf(&e.sb, "%s %s\n", name, strconv.FormatFloat(v, 'f', -1, 64))
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	requests := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		requests[k] = v
	}
	cascades := make(map[string]cascadeStat, len(c.cascades))
	for k, v := range c.cascades {
		cascades[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(requests))
	for k := range requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})
	kinds := make([]string, 0, len(cascades))
	for k := range cascades {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var e exposition
	e.help("exames_uptime_seconds", "gauge", "Seconds since the process started.")
	e.sample("exames_uptime_seconds", "", float64(int64(time.Since(startedAt).Seconds())))

	e.help("exames_http_requests_total", "counter", "HTTP requests by method, route and status.")
	for _, k := range keys {
		e.sample("exames_http_requests_total", requestLabels(k), float64(requests[k].Count))
	}
	e.help("exames_http_request_latency_ms_sum", "counter", "Summed request latency in milliseconds.")
	for _, k := range keys {
		e.sample("exames_http_request_latency_ms_sum", requestLabels(k), requests[k].LatencyMS)
	}

	e.help("exames_cascade_writes_total", "counter", "Committed cascade writes from base exams to their children.")
	for _, kind := range kinds {
		e.sample("exames_cascade_writes_total", fmt.Sprintf("kind=%q", kind), float64(cascades[kind].Writes))
	}
	e.help("exames_cascade_rows_total", "counter", "Child exam rows touched by committed cascades.")
	for _, kind := range kinds {
		e.sample("exames_cascade_rows_total", fmt.Sprintf("kind=%q", kind), float64(cascades[kind].Rows))
	}

	if c.db != nil {
		dbs := c.db.Stats()
		e.help("exames_db_connections", "gauge", "Pool connections by state.")
		e.sample("exames_db_connections", `state="open"`, float64(dbs.OpenConnections))
		e.sample("exames_db_connections", `state="in_use"`, float64(dbs.InUse))
		e.sample("exames_db_connections", `state="idle"`, float64(dbs.Idle))
		e.help("exames_db_wait_total", "counter", "Connections waited for.")
		e.sample("exames_db_wait_total", "", float64(dbs.WaitCount))
		e.help("exames_db_wait_ms_total", "counter", "Total time blocked waiting for a connection.")
		e.sample("exames_db_wait_ms_total", "", float64(dbs.WaitDuration.Microseconds())/1000.0)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(e.sb.String()))
}

func requestLabels(k key) string {
	return fmt.Sprintf("method=%q,path=%q,status=\"%d\"", k.Method, k.Path, k.Status)
}

// routePath prefers the matched chi pattern so metric labels stay low-cardinality.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return strings.ReplaceAll(p, "{id:[0-9]+}", "{id}")
		}
	}
	return normalizedPath(r.URL.Path)
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func extractExamID(path string) int64 {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "exames" {
			if id, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
