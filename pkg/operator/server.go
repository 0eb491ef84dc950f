// Package operator implements the controller-facing HTTP surface of
// spec.md §4.11: a small signed surface an operator CLI or dashboard
// uses to trigger an out-of-band check and poll its progress, distinct
// from pkg/agent's per-host surface. Signing and pooling middleware are
// adapted from pkg/agent's, which is itself grounded in the teacher's
// pkg/api.HealthServer.
package operator

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/tugtainer/pkg/engine"
	"github.com/cuemby/tugtainer/pkg/progress"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultPoolSize = 4
	defaultSkew     = 30 * time.Second
)

// Config configures the operator surface.
type Config struct {
	Secret   string
	PoolSize int
}

// Server is the operator HTTP surface in front of one Engine.
type Server struct {
	engine *engine.Engine
	secret string
	sem    chan struct{}
	mux    *http.ServeMux
}

// NewServer builds the operator surface's router.
func NewServer(eng *engine.Engine, cfg Config) *Server {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	s := &Server{
		engine: eng,
		secret: cfg.Secret,
		sem:    make(chan struct{}, poolSize),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("/operator/check", s.handleCheckAll)
	s.handle("/operator/hosts/", s.handleHostCheck)
	s.handle("/operator/containers/", s.handleForceUpdate)
	s.handle("/operator/progress/", s.handleProgress)
}

func (s *Server) handle(path string, h http.HandlerFunc) {
	s.mux.HandleFunc(path, poolMiddleware(s.sem, defaultTimeout)(signingMiddleware(s.secret, defaultSkew)(h)))
}

// ServeHTTP lets *Server be used directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleCheckAll starts check_all in the background and hands back the
// "all" progress key immediately; the run itself may take minutes.
func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	go s.engine.CheckAll(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"progress_key": progress.AllKey})
}

// handleHostCheck triggers check_host for /operator/hosts/{id}/check.
func (s *Server) handleHostCheck(w http.ResponseWriter, r *http.Request) {
	hostID, ok := pathParam(r.URL.Path, "/operator/hosts/", "/check")
	if !ok {
		http.Error(w, "expected /operator/hosts/{id}/check", http.StatusBadRequest)
		return
	}
	host, found, err := s.engine.Store.GetHost(r.Context(), hostID)
	if err != nil || !found {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}

	go s.engine.CheckHost(context.Background(), hostID)
	writeJSON(w, http.StatusAccepted, map[string]string{"progress_key": progress.HostKey(host.ID, host.Name)})
}

// handleForceUpdate triggers a single-container forced update for
// /operator/containers/{host}/{name}/force-update.
func (s *Server) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/operator/containers/")
	rest = strings.TrimSuffix(rest, "/force-update")
	hostID, name, ok := strings.Cut(rest, "/")
	if !ok || hostID == "" || name == "" {
		http.Error(w, "expected /operator/containers/{host}/{name}/force-update", http.StatusBadRequest)
		return
	}
	host, found, err := s.engine.Store.GetHost(r.Context(), hostID)
	if err != nil || !found {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}

	go s.engine.ForceUpdateContainer(context.Background(), hostID, name)
	writeJSON(w, http.StatusAccepted, map[string]string{"progress_key": progress.HostKey(host.ID, host.Name)})
}

// handleProgress serves GET /operator/progress/{key}.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/operator/progress/")
	if key == "" {
		http.Error(w, "missing progress key", http.StatusBadRequest)
		return
	}

	p, ok := s.engine.Progress.Get(key)
	if !ok {
		http.Error(w, "unknown progress key", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// pathParam extracts the segment between a fixed prefix and suffix,
// e.g. pathParam("/operator/hosts/h1/check", "/operator/hosts/", "/check") -> "h1", true.
func pathParam(path, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	v := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if v == "" {
		return "", false
	}
	return v, true
}
