// Package httpapi exposes the host over HTTP: the callback endpoint third
// parties hit when an action is clicked, plus read-only wait views.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/internal/streaming"
	"github.com/rendis/actionwait/internal/wait"
	"github.com/rendis/actionwait/pkg/schema"
)

// Deps holds the dependencies of the HTTP server.
type Deps struct {
	Host      *host.Host
	Store     store.Store
	Hub       streaming.EventHub
	Validator wait.BodyValidator // optional
	Logger    *slog.Logger
	// DefaultTimeout applies to waits created without one.
	DefaultTimeout time.Duration
	// Now is the clock used for new waits. Defaults to time.Now.
	Now func() time.Time
	// Artifacts holds the artifacts of waits created over HTTP. Share one
	// registry across handler rebuilds so live waits keep their view.
	Artifacts *artifact.Registry
}

// Server serves the HTTP surface.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	deps.Logger = logging.Default(deps.Logger)
	if deps.DefaultTimeout <= 0 {
		deps.DefaultTimeout = wait.DefaultTimeout
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Artifacts == nil {
		deps.Artifacts = artifact.NewRegistry()
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Callback capability.
	mux.HandleFunc("GET /callbacks/{correlation_id}", s.handleCallback)
	mux.HandleFunc("POST /callbacks/{correlation_id}", s.handleCallback)

	// Waits.
	mux.HandleFunc("POST /waits", s.handleCreateWait)
	mux.HandleFunc("GET /waits", s.handleListWaits)
	mux.HandleFunc("GET /waits/{correlation_id}/artifact", s.handleArtifact)
	mux.HandleFunc("GET /runs/{run_id}/history", s.handleHistory)
	mux.HandleFunc("DELETE /runs/{run_id}", s.handleForgetRun)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSE)

	return s.withRequestLogging(mux)
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.deps.Logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func errStatus(err error) int {
	switch {
	case schema.IsCode(err, schema.ErrCodeNotFound):
		return http.StatusNotFound
	case schema.IsCode(err, schema.ErrCodeConflict):
		return http.StatusConflict
	case schema.IsCode(err, schema.ErrCodeValidation):
		return http.StatusBadRequest
	case schema.IsCode(err, schema.ErrCodeArtifact):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
