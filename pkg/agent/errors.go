package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/tugtainer/pkg/engineerr"
)

// writeJSON writes v as a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeText writes a plain-text response body.
func writeText(w http.ResponseWriter, status int, s string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}

// writeTimeout is the fixed TimeoutError response spec.md §4.3 names: a
// 500 with a fixed diagnostic string, never the underlying error detail.
func writeTimeout(w http.ResponseWriter) {
	http.Error(w, "operation timed out", http.StatusInternalServerError)
}

// writeError classifies err into the HTTP status spec.md §4.3 assigns it.
// A context deadline (the pool middleware's timeout, or a handler's own
// ctx-aware wait expiring) always maps to the fixed timeout response,
// ahead of any other classification.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeTimeout(w)
		return
	}

	switch engineerr.KindOf(err) {
	case engineerr.KindUnauthorized:
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case engineerr.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case engineerr.KindValidationError:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case engineerr.KindTimeout:
		writeTimeout(w)
	default:
		writeEngineError(w, err)
	}
}

// writeEngineError is the HTTP 424 path: an engine exception, with
// stdout/stderr echoed losslessly when the error carries them.
func writeEngineError(w http.ResponseWriter, err error) {
	var detail struct {
		Detail struct {
			Stdout string `json:"stdout"`
			Stderr string `json:"stderr"`
		} `json:"detail"`
	}

	var ee *engineerr.Error
	if errors.As(err, &ee) {
		detail.Detail.Stdout = ee.Stdout
		detail.Detail.Stderr = ee.Stderr
	}
	writeJSON(w, http.StatusFailedDependency, detail)
}
