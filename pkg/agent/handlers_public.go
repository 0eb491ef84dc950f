package agent

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/tugtainer/pkg/engineerr"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Health(r.Context()); err != nil {
		writeError(w, &engineerr.Error{Kind: engineerr.KindEngineError, Message: "unhealthy", Detail: err.Error()})
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Access(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleCommandRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Command []string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Command) == 0 {
		http.Error(w, "command must be a non-empty argv", http.StatusBadRequest)
		return
	}

	stdout, stderr, err := s.engine.RunCommand(r.Context(), body.Command)
	if err != nil {
		writeError(w, &engineerr.Error{Kind: engineerr.KindEngineError, Message: "command failed", Stdout: stdout, Stderr: stderr})
		return
	}
	writeJSON(w, http.StatusOK, [2]string{stdout, stderr})
}
