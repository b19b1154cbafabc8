// Package api serves the keep-alive and status endpoints polled by the
// hosting platform.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const platform = "Render.com"

// Status reports the chat gateway state.
type Status interface {
	Ready() bool
	UserTag() string
	Guilds() int
	Latency() time.Duration
}

// Server holds the status handler dependencies.
type Server struct {
	status  Status
	loc     *time.Location
	started time.Time
	now     func() time.Time
}

// NewServer creates a status server. loc is the reporting time zone.
func NewServer(status Status, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{status: status, loc: loc, started: time.Now(), now: time.Now}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/ping", s.ping)
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (s *Server) uptime() int64 {
	return int64(s.now().Sub(s.started).Seconds())
}

// GET / — overall status.
func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	user := s.status.UserTag()
	if user == "" {
		user = "Conectando..."
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "✅ Bot funcionando en " + platform,
		"user":      user,
		"guilds":    s.status.Guilds(),
		"uptime":    s.uptime(),
		"platform":  platform,
		"timestamp": now.UTC().Format(time.RFC3339),
		"localTime": now.In(s.loc).Format("02/01/2006, 15:04:05"),
		"ready":     s.status.Ready(),
	})
}

// GET /health — 503 until the gateway is ready.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ready := s.status.Ready()
	body := map[string]interface{}{
		"status":    "connecting",
		"bot":       "disconnected",
		"user":      nil,
		"latency":   nil,
		"uptime":    s.uptime(),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if tag := s.status.UserTag(); tag != "" {
		body["user"] = tag
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	body["bot"] = "connected"
	body["latency"] = s.status.Latency().Milliseconds()
	writeJSON(w, http.StatusOK, body)
}

// GET /ping — liveness.
func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	bot := s.status.UserTag()
	if bot == "" {
		bot = "Connecting..."
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ping":      "pong",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.uptime(),
		"bot":       bot,
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
