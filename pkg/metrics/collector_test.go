package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tugtainer/pkg/types"
)

type fakeHostLister struct {
	hosts []types.Host
}

func (f fakeHostLister) ListHosts(ctx context.Context) ([]types.Host, error) {
	return f.hosts, nil
}

func TestCollectHostCountsSetsGaugeByEnabledState(t *testing.T) {
	store := fakeHostLister{hosts: []types.Host{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: true},
		{ID: "c", Enabled: false},
	}}

	CollectHostCounts(context.Background(), store)

	require.Equal(t, float64(2), testutil.ToFloat64(HostsTotal.WithLabelValues("true")))
	require.Equal(t, float64(1), testutil.ToFloat64(HostsTotal.WithLabelValues("false")))
}
