package agent

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/tugtainer/pkg/types"
)

func (s *Server) handleImageList(w http.ResponseWriter, r *http.Request) {
	var opts types.ImageListOptions
	_ = json.NewDecoder(r.Body).Decode(&opts)

	out, err := s.engine.ListImages(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImageInspect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SpecOrID string `json:"spec_or_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	out, err := s.engine.InspectImage(r.Context(), body.SpecOrID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImagePull(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Image string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := s.engine.PullImage(r.Context(), body.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImageTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SpecOrID string `json:"spec_or_id"`
		Tag      string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.engine.TagImage(r.Context(), body.SpecOrID, body.Tag); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "")
}

func (s *Server) handleImagePrune(w http.ResponseWriter, r *http.Request) {
	var opts types.ImagePruneOptions
	_ = json.NewDecoder(r.Body).Decode(&opts)

	out, err := s.engine.PruneImages(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleManifestInspect(w http.ResponseWriter, r *http.Request) {
	specOrDigest := r.URL.Query().Get("spec_or_digest")
	out, err := s.engine.InspectManifest(r.Context(), specOrDigest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
