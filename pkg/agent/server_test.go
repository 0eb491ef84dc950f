package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/signing"
	"github.com/cuemby/tugtainer/pkg/types"
)

// fakeEngine is a minimal hostclient.HostClient double for exercising the
// HTTP surface without a real container engine.
type fakeEngine struct {
	hostclient.HostClient
	healthErr error
	container types.ContainerInspect
	startErr  error
	stdout    string
	stderr    string
	cmdErr    error
}

func (f *fakeEngine) Health(ctx context.Context) error { return f.healthErr }
func (f *fakeEngine) Access(ctx context.Context) error { return nil }

func (f *fakeEngine) InspectContainer(ctx context.Context, ref string) (types.ContainerInspect, error) {
	return f.container, nil
}

func (f *fakeEngine) StartContainer(ctx context.Context, ref string) error { return f.startErr }

func (f *fakeEngine) RunCommand(ctx context.Context, argv []string) (string, string, error) {
	return f.stdout, f.stderr, f.cmdErr
}

func signedRequest(t *testing.T, method, path, secret string, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	sig := signing.Sign(method, path, body, ts, secret)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(signing.HeaderSignature, sig)
	return req
}

func TestHealthEndpointReturnsOK(t *testing.T) {
	engine := &fakeEngine{}
	s := NewServer(engine, Config{Secret: "s3cr3t"})

	req := signedRequest(t, http.MethodGet, "/public/health", "s3cr3t", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthEndpointMapsEngineErrorTo424(t *testing.T) {
	engine := &fakeEngine{healthErr: assertErr("containerd down")}
	s := NewServer(engine, Config{Secret: "s3cr3t"})

	req := signedRequest(t, http.MethodGet, "/public/health", "s3cr3t", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFailedDependency, rec.Code)
}

func TestRequestRejectedWithoutValidSignature(t *testing.T) {
	engine := &fakeEngine{}
	s := NewServer(engine, Config{Secret: "s3cr3t"})

	req := httptest.NewRequest(http.MethodGet, "/public/health", nil)
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestAllowedWithoutSignatureWhenSecretEmpty(t *testing.T) {
	engine := &fakeEngine{}
	s := NewServer(engine, Config{Secret: ""})

	req := httptest.NewRequest(http.MethodGet, "/public/health", nil)
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContainerInspectRoundTrip(t *testing.T) {
	engine := &fakeEngine{container: types.ContainerInspect{ID: "c1", Name: "web"}}
	s := NewServer(engine, Config{Secret: ""})

	req := httptest.NewRequest(http.MethodGet, "/container/inspect/web", nil)
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out types.ContainerInspect
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "web", out.Name)
}

func TestCommandRunRejectsEmptyArgv(t *testing.T) {
	engine := &fakeEngine{}
	s := NewServer(engine, Config{Secret: ""})

	req := httptest.NewRequest(http.MethodPost, "/command/run", bytes.NewReader([]byte(`{"Command":[]}`)))
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandRunEchoesStdoutStderrOnFailure(t *testing.T) {
	engine := &fakeEngine{stdout: "partial", stderr: "boom", cmdErr: assertErr("exit 1")}
	s := NewServer(engine, Config{Secret: ""})

	body := []byte(`{"Command":["false"]}`)
	req := httptest.NewRequest(http.MethodPost, "/command/run", bytes.NewReader(body))
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFailedDependency, rec.Code)
	var out struct {
		Detail struct {
			Stdout string `json:"stdout"`
			Stderr string `json:"stderr"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "partial", out.Detail.Stdout)
	assert.Equal(t, "boom", out.Detail.Stderr)
}

func TestPoolMiddlewareRejectsWhenSaturated(t *testing.T) {
	sem := make(chan struct{}, 1)
	sem <- struct{}{} // occupy the only slot

	called := false
	h := poolMiddleware(sem, 20*time.Millisecond)(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "operation timed out\n", rec.Body.String())
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrType(msg) }
