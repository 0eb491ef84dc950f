// Package agent implements the per-host HTTP surface (component C4):
// http.NewServeMux()-based router grounded directly in the teacher's
// pkg/api.HealthServer (mux.HandleFunc, a Start(addr string) error
// wrapping http.Server{ReadTimeout, WriteTimeout, IdleTimeout}), with
// every handler behind a signing middleware and a bounded-worker-pool
// timeout middleware.
package agent

import (
	"net/http"
	"time"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/metrics"
)

const (
	defaultPoolSize      = 7
	defaultLightTimeout  = 15 * time.Second
	defaultHeavyTimeout  = 600 * time.Second
	defaultClockSkew     = 30 * time.Second
	readHeaderTimeout    = 5 * time.Second
	idleTimeout          = 60 * time.Second
)

// Config holds the agent server's tunables.
type Config struct {
	Secret       string // shared HMAC secret; empty disables signature verification
	PoolSize     int    // bounded worker pool size, default 7
	LightTimeout time.Duration
	HeavyTimeout time.Duration
}

// Server is the agent's HTTP surface. Engine is the local adapter that
// actually talks to the container engine (production: containerengine.
// Engine; tests: a fake satisfying the same interface).
type Server struct {
	engine hostclient.HostClient
	secret string
	sem    chan struct{}
	light  time.Duration
	heavy  time.Duration
	mux    *http.ServeMux
}

// NewServer builds the agent's router, wiring every path named by
// spec.md §6 (under /public, /container, /image, /manifest and /command).
func NewServer(engine hostclient.HostClient, cfg Config) *Server {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	light := cfg.LightTimeout
	if light <= 0 {
		light = defaultLightTimeout
	}
	heavy := cfg.HeavyTimeout
	if heavy <= 0 {
		heavy = defaultHeavyTimeout
	}

	s := &Server{
		engine: engine,
		secret: cfg.Secret,
		sem:    make(chan struct{}, poolSize),
		light:  light,
		heavy:  heavy,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("/public/health", s.light, s.handleHealth)
	s.handle("/public/access", s.light, s.handleAccess)

	s.handle("/container/list", s.light, s.handleContainerList)
	s.handle("/container/exists/", s.light, s.handleContainerExists)
	s.handle("/container/inspect/", s.light, s.handleContainerInspect)
	s.handle("/container/create", s.heavy, s.handleContainerCreate)
	s.handle("/container/start/", s.heavy, s.handleContainerAction(s.engine.StartContainer))
	s.handle("/container/stop/", s.heavy, s.handleContainerAction(s.engine.StopContainer))
	s.handle("/container/restart/", s.heavy, s.handleContainerAction(s.engine.RestartContainer))
	s.handle("/container/kill/", s.heavy, s.handleContainerAction(s.engine.KillContainer))
	s.handle("/container/pause/", s.light, s.handleContainerAction(s.engine.PauseContainer))
	s.handle("/container/unpause/", s.light, s.handleContainerAction(s.engine.UnpauseContainer))
	s.handle("/container/remove/", s.heavy, s.handleContainerAction(s.engine.RemoveContainer))

	s.handle("/image/list", s.light, s.handleImageList)
	s.handle("/image/inspect", s.light, s.handleImageInspect)
	s.handle("/image/pull", s.heavy, s.handleImagePull)
	s.handle("/image/tag", s.light, s.handleImageTag)
	s.handle("/image/prune", s.heavy, s.handleImagePrune)

	s.handle("/manifest/inspect", s.light, s.handleManifestInspect)

	s.handle("/command/run", s.heavy, s.handleCommandRun)

	s.mux.Handle("/metrics", metrics.Handler())
}

// handle registers path behind the signing and pool/timeout middleware,
// and records request totals/duration keyed by path.
func (s *Server) handle(path string, timeout time.Duration, h http.HandlerFunc) {
	wrapped := poolMiddleware(s.sem, timeout)(signingMiddleware(s.secret, defaultClockSkew)(instrument(path, h)))
	s.mux.HandleFunc(path, wrapped)
}

func instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		timer.ObserveDurationVec(metrics.AgentRequestDuration, path)
		metrics.AgentRequestsTotal.WithLabelValues(path, statusClass(rec.status)).Inc()
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

func statusClass(code int) string {
	switch {
	case code < 300:
		return "ok"
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusFailedDependency:
		return "engine_error"
	default:
		return "error"
	}
}

// Start serves the agent HTTP surface on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      defaultHeavyTimeout + 5*time.Second,
		IdleTimeout:       idleTimeout,
	}
	return server.ListenAndServe()
}
