// Package server exposes the engine over HTTP.
//
// Stateless clients ask for rendered frames with GET /api/render. Stateful
// clients create a session, send step and metric changes, and pull frames
// or frame diffs while they scroll, either over plain HTTP or over a
// WebSocket stream:
//
//	POST   /api/sessions                  create a session
//	GET    /api/sessions/{id}             session position
//	DELETE /api/sessions/{id}             end a session
//	POST   /api/sessions/{id}/step        {"index": 3, "direction": "down"}
//	POST   /api/sessions/{id}/seek        {"index": 3}
//	POST   /api/sessions/{id}/metric      {"metric": "vorp"}
//	GET    /api/sessions/{id}/frame       ?progress=0.4[&diff=true]
//	GET    /api/sessions/{id}/frame.svg   ?progress=0.4
//	GET    /api/sessions/{id}/stream      WebSocket
//
// Errors are JSON objects carrying the error code and message, with the
// HTTP status derived from the code.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/rostermap/pkg/buildinfo"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/session"
)

// DefaultCleanupInterval is how often Run sweeps expired sessions.
const DefaultCleanupInterval = time.Minute

// Config wires a server.
type Config struct {
	// Options are the defaults for every render and new session. Requests
	// override step, progress, direction, metric and format.
	Options pipeline.Options

	Runner *pipeline.Runner
	Store  *session.Store
	Logger *log.Logger

	// Metrics, if set, is served at /metrics.
	Metrics http.Handler
}

// Server answers API requests against the current dataset.
type Server struct {
	opts    pipeline.Options
	runner  *pipeline.Runner
	store   *session.Store
	logger  *log.Logger
	metrics http.Handler

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	loaded *pipeline.Loaded
}

// New creates a server serving loaded. Missing runner, store and logger
// are replaced by defaults.
func New(cfg Config, loaded *pipeline.Loaded) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	opts := cfg.Options
	if opts.Logger == nil {
		opts.Logger = cfg.Logger
	}
	opts.SetDefaults()
	if cfg.Runner == nil {
		cfg.Runner = pipeline.NewRunner(nil, nil, cfg.Logger)
	}
	if cfg.Store == nil {
		cfg.Store = session.NewStore(session.DefaultTTL)
	}
	return &Server{
		opts:    opts,
		runner:  cfg.Runner,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		loaded:  loaded,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SetDataset swaps the dataset new sessions start from. Running sessions
// keep the dataset they were created with.
func (s *Server) SetDataset(l *pipeline.Loaded) {
	s.mu.Lock()
	s.loaded = l
	s.mu.Unlock()
}

// Dataset returns the current dataset.
func (s *Server) Dataset() *pipeline.Loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Store returns the session store.
func (s *Server) Store() *session.Store { return s.store }

// Run sweeps expired sessions every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	s.store.Run(ctx, interval, func(removed, active int) {
		if removed > 0 {
			s.logger.Debug("expired sessions", "removed", removed, "active", active)
		}
		observability.Server().OnSessions(ctx, active)
	})
}

// Handler returns the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/dataset", s.handleDataset)
		api.Get("/steps", s.handleSteps)
		api.Get("/render", s.handleRender)
		api.Get("/network/{step}", s.handleNetwork)

		api.Route("/sessions", func(sr chi.Router) {
			sr.Post("/", s.handleCreateSession)
			sr.Route("/{id}", func(item chi.Router) {
				item.Get("/", s.handleGetSession)
				item.Delete("/", s.handleDeleteSession)
				item.Post("/step", s.handleStep)
				item.Post("/seek", s.handleSeek)
				item.Post("/metric", s.handleMetric)
				item.Get("/frame", s.handleFrame)
				item.Get("/frame.svg", s.handleFrameSVG)
				item.Get("/stream", s.handleStream)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errs.New(errs.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// logRequests logs every request and reports it to the server hooks under
// its route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		dur := time.Since(start)
		observability.Server().OnResponse(r.Context(), r.Method, route, status, dur)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", dur,
			"request_id", chimw.GetReqID(r.Context()))
	})
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Dataset() == nil {
		writeError(w, errs.New(errs.ErrCodeInternal, "no dataset loaded"))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Build: buildinfo.Get()})
}

// current returns the loaded dataset or an error when none is loaded yet.
func (s *Server) current() (*pipeline.Loaded, error) {
	l := s.Dataset()
	if l == nil {
		return nil, errs.New(errs.ErrCodeInternal, "no dataset loaded")
	}
	return l, nil
}

// session resolves the {id} URL parameter.
func (s *Server) session(r *http.Request) (*session.Session, error) {
	return s.store.Get(chi.URLParam(r, "id"))
}
