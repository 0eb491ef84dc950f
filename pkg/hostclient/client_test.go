package hostclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/tugtainer/pkg/signing"
	"github.com/cuemby/tugtainer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, secret string, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get(signing.HeaderTimestamp)
		sig := r.Header.Get(signing.HeaderSignature)
		require.NotEmpty(t, ts)
		if secret != "" {
			assert.NotEmpty(t, sig)
		}
		handler(w, r)
	}))
}

func TestListContainers(t *testing.T) {
	srv := newTestServer(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/container/list", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]types.ContainerInspect{{ID: "abc", Name: "web"}})
	})
	defer srv.Close()

	c := NewClient(Config{HostID: "h1", BaseURL: srv.URL, Secret: "secret", Timeout: time.Second})
	out, err := c.ListContainers(context.TODO(), true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "web", out[0].Name)
}

func TestNotFoundMapsToTypedError(t *testing.T) {
	srv := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such container"))
	})
	defer srv.Close()

	c := NewClient(Config{HostID: "h1", BaseURL: srv.URL})
	_, err := c.InspectContainer(context.TODO(), "web")
	require.Error(t, err)
}

func TestEngineErrorEchoesStdoutStderr(t *testing.T) {
	srv := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFailedDependency)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"detail": map[string]string{"stdout": "out", "stderr": "boom"},
		})
	})
	defer srv.Close()

	c := NewClient(Config{HostID: "h1", BaseURL: srv.URL})
	_, _, err := c.RunCommand(context.TODO(), []string{"echo", "hi"})
	require.Error(t, err)
}

func TestTimeoutMapsToFixedMessage(t *testing.T) {
	srv := newTestServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	c := NewClient(Config{HostID: "h1", BaseURL: srv.URL})
	err := c.StartContainer(context.TODO(), "web")
	require.Error(t, err)
}
