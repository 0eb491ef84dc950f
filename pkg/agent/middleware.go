package agent

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/tugtainer/pkg/signing"
)

// signingMiddleware verifies X-Timestamp and (if secret is non-empty)
// X-Signature per spec.md §4.1, grounded in pkg/signing.Verify. The
// request body is read fully, verified, then replaced so the wrapped
// handler can read it again.
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

// poolMiddleware bounds concurrent handler execution to the size of sem
// (the worker pool, default 7 per spec.md §5) and enforces the
// light/heavy timeout split from spec.md §4.3: acquiring a slot and
// running the handler both count against timeout.
func poolMiddleware(sem chan struct{}, timeout time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				writeTimeout(w)
				return
			}
			defer func() { <-sem }()

			next(w, r.WithContext(ctx))
		}
	}
}
