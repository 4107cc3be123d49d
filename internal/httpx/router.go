package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/ws"
)

const healthCheckTimeout = 2 * time.Second

// Reconciler runs one poll-compare-notify-persist cycle.
type Reconciler interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

// Router wires HTTP endpoints to the engine.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	engine      Reconciler
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	engineToken string
	dbHealth    func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, engine Reconciler, hub *ws.Hub, engineToken string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		engineToken: strings.TrimSpace(engineToken),
		dbHealth:    dbHealth,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/reconcile", r.audit("/reconcile", r.handleReconcile))
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/ws/events", r.audit("/ws/events", r.handleEvents))
	r.mux.Handle("/metrics", promhttp.Handler())
}

// handleReconcile is the scheduler's trigger. The summary is always a 200
// unless the run itself could not execute.
func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyEngineToken(w, req) {
		return
	}
	summary, err := r.engine.Run(req.Context())
	if err != nil {
		r.logger.Error("reconcile run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reconcile run failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// handleEvents upgrades to a websocket and streams reconcile events, scoped
// to one server when server_id is provided.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		writeError(w, http.StatusNotFound, "event feed not enabled")
		return
	}
	if !r.verifyEngineToken(w, req) {
		return
	}
	serverID := strings.TrimSpace(req.URL.Query().Get("server_id"))
	if serverID == "" {
		serverID = ws.AllServers
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, serverID, r.logger)
	r.hub.Register(serverID, client)
	go func() {
		defer func() {
			r.hub.Unregister(serverID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// verifyEngineToken ensures callers include the configured scheduler secret.
func (r *Router) verifyEngineToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.engineToken
	if expected == "" {
		r.logger.Error("engine token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "engine authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Engine-Token"))
	if token == "" {
		token = strings.TrimSpace(req.URL.Query().Get("token"))
	}
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("engine token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid engine token")
		return false
	}
	return true
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
		r.recordRequestMetrics(req.Method, route, status, duration)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
