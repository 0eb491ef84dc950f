package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cuemby/tugtainer/pkg/types"
)

// lastSegment extracts the trailing path component, used for every
// /container/{verb}/{ref} route — the ref itself is a container name and
// never contains a slash.
func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func (s *Server) handleContainerList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		All bool
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	out, err := s.engine.ListContainers(r.Context(), body.All)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleContainerExists(w http.ResponseWriter, r *http.Request) {
	ref := lastSegment(r.URL.Path)
	ok, err := s.engine.ContainerExists(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (s *Server) handleContainerInspect(w http.ResponseWriter, r *http.Request) {
	ref := lastSegment(r.URL.Path)
	out, err := s.engine.InspectContainer(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleContainerCreate(w http.ResponseWriter, r *http.Request) {
	var body types.CreateContainerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := s.engine.CreateContainer(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleContainerAction adapts any ctx/ref -> error engine method (start,
// stop, restart, kill, pause, unpause, remove) into a handler.
func (s *Server) handleContainerAction(action func(ctx context.Context, ref string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := lastSegment(r.URL.Path)
		if err := action(r.Context(), ref); err != nil {
			writeError(w, err)
			return
		}
		writeText(w, http.StatusOK, ref)
	}
}
