package operator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tugtainer/pkg/engine"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/signing"
	"github.com/cuemby/tugtainer/pkg/types"
)

func signedReq(t *testing.T, method, path, secret string) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	sig := signing.Sign(method, path, nil, ts, secret)
	req := httptest.NewRequest(method, path, bytes.NewReader(nil))
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(signing.HeaderSignature, sig)
	return req
}

func TestHandleProgressReturns404ForUnknownKey(t *testing.T) {
	s := &Server{
		engine: &engine.Engine{Progress: progress.New()},
		secret: "",
		sem:    make(chan struct{}, 1),
		mux:    http.NewServeMux(),
	}
	s.routes()

	req := signedReq(t, http.MethodGet, "/operator/progress/nope", "")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleProgressReturnsStoredEntry(t *testing.T) {
	p := progress.New()
	p.Set("all", &types.Progress{Status: types.StatusDone})

	s := &Server{
		engine: &engine.Engine{Progress: p},
		secret: "",
		sem:    make(chan struct{}, 1),
		mux:    http.NewServeMux(),
	}
	s.routes()

	req := signedReq(t, http.MethodGet, "/operator/progress/all", "")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out types.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, types.StatusDone, out.Status)
}

func TestHandleHostCheckRejectsMalformedPath(t *testing.T) {
	s := &Server{
		engine: &engine.Engine{Progress: progress.New()},
		secret: "",
		sem:    make(chan struct{}, 1),
		mux:    http.NewServeMux(),
	}
	s.routes()

	req := signedReq(t, http.MethodPost, "/operator/hosts/", "")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestRejectedWithoutValidSignature(t *testing.T) {
	s := &Server{
		engine: &engine.Engine{Progress: progress.New()},
		secret: "s3cr3t",
		sem:    make(chan struct{}, 1),
		mux:    http.NewServeMux(),
	}
	s.routes()

	req := httptest.NewRequest(http.MethodGet, "/operator/progress/all", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
