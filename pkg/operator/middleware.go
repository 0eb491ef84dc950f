package operator

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/tugtainer/pkg/signing"
)

// signingMiddleware mirrors pkg/agent's: verify X-Timestamp/X-Signature
// before handing the request to the operator handler.
func signingMiddleware(secret string, skew time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			tsHeader := r.Header.Get(signing.HeaderTimestamp)
			ts, err := strconv.ParseInt(tsHeader, 10, 64)
			if err != nil {
				http.Error(w, "missing or invalid "+signing.HeaderTimestamp, http.StatusUnauthorized)
				return
			}

			sig := r.Header.Get(signing.HeaderSignature)
			if err := signing.Verify(r.Method, r.URL.Path, body, ts, secret, sig, skew, time.Now()); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

// poolMiddleware bounds concurrent operator requests the same way
// pkg/agent's does, at the operator surface's own (smaller) pool size.
func poolMiddleware(sem chan struct{}, timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				http.Error(w, "operation timed out", http.StatusInternalServerError)
				return
			}
			defer func() { <-sem }()

			next(w, r.WithContext(ctx))
		}
	}
}
