package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/tugtainer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	called bool
	msg    Message
}

func (r *recordingNotifier) Notify(ctx context.Context, msg Message) error {
	r.called = true
	r.msg = msg
	return nil
}

func TestDispatchSkippedWhenNothingWorthy(t *testing.T) {
	rec := &recordingNotifier{}
	b, err := NewBridge("{{len .Items}} items", "body", rec)
	require.NoError(t, err)

	hosts := []*types.HostResult{{
		HostName: "h1",
		Groups: []types.GroupResult{{
			Items: []types.ContainerResult{{Name: "web", Result: types.ResultNotAvailable}},
		}},
	}}

	require.NoError(t, b.Dispatch(context.Background(), hosts))
	assert.False(t, rec.called)
}

func TestDispatchSendsWhenAvailable(t *testing.T) {
	rec := &recordingNotifier{}
	b, err := NewBridge("Updates on {{len .Hosts}} hosts", "{{range .Items}}{{.Name}} {{.Result}}\n{{end}}", rec)
	require.NoError(t, err)

	hosts := []*types.HostResult{{
		HostName: "h1",
		Groups: []types.GroupResult{{
			Items: []types.ContainerResult{
				{Name: "web", Result: types.ResultAvailable},
				{Name: "db", Result: types.ResultNotAvailable},
			},
		}},
	}}

	require.NoError(t, b.Dispatch(context.Background(), hosts))
	require.True(t, rec.called)
	assert.Contains(t, rec.msg.Title, "1 hosts")
	assert.Contains(t, rec.msg.Body, "web available")
}

func TestAvailableNotifiedIsNotWorthyOnItsOwn(t *testing.T) {
	rec := &recordingNotifier{}
	b, err := NewBridge("t", "b", rec)
	require.NoError(t, err)

	hosts := []*types.HostResult{{
		Groups: []types.GroupResult{{
			Items: []types.ContainerResult{{Name: "web", Result: types.ResultAvailableNotified}},
		}},
	}}

	require.NoError(t, b.Dispatch(context.Background(), hosts))
	assert.False(t, rec.called)
}

func TestAnyWorthyTemplateHelperUsableDirectly(t *testing.T) {
	rec := &recordingNotifier{}
	b, err := NewBridge("{{if any_worthy .Items}}ALERT{{else}}quiet{{end}}", "body", rec)
	require.NoError(t, err)

	hosts := []*types.HostResult{{
		Groups: []types.GroupResult{{
			Items: []types.ContainerResult{{Name: "web", Result: types.ResultFailed}},
		}},
	}}
	require.NoError(t, b.Dispatch(context.Background(), hosts))
	assert.Equal(t, "ALERT", rec.msg.Title)
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := WebhookNotifier{URL: srv.URL}
	require.NoError(t, n.Notify(context.Background(), Message{Title: "t", Body: "b"}))
	assert.Contains(t, gotBody, "\"Title\":\"t\"")
}

func TestMultiNotifierFansOutToEveryNotifier(t *testing.T) {
	rec1 := &recordingNotifier{}
	rec2 := &recordingNotifier{}
	m := MultiNotifier{rec1, rec2}
	require.NoError(t, m.Notify(context.Background(), Message{Title: "t"}))
	assert.True(t, rec1.called)
	assert.True(t, rec2.called)
}
