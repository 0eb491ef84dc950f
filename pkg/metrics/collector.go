package metrics

import (
	"context"
	"time"

	"github.com/cuemby/tugtainer/pkg/types"
)

// HostLister is the subset of pkg/store.Store the host-count collector
// depends on, kept narrow so it can be satisfied by a fake in tests
// without this package needing the rest of the Store interface.
type HostLister interface {
	ListHosts(ctx context.Context) ([]types.Host, error)
}

// CollectHostCounts samples the store's host table and updates
// HostsTotal. It is meant to be run on a fixed interval by the
// controller binary, the same way pkg/leader's leadership state is kept
// current by a periodic poller rather than pushed on every change.
func CollectHostCounts(ctx context.Context, store HostLister) {
	hosts, err := store.ListHosts(ctx)
	if err != nil {
		return
	}

	var enabled, disabled float64
	for _, h := range hosts {
		if h.Enabled {
			enabled++
		} else {
			disabled++
		}
	}
	HostsTotal.WithLabelValues("true").Set(enabled)
	HostsTotal.WithLabelValues("false").Set(disabled)
}

// RunHostCountCollector polls CollectHostCounts on the given interval
// until ctx is done.
func RunHostCountCollector(ctx context.Context, store HostLister, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	CollectHostCounts(ctx, store)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CollectHostCounts(ctx, store)
		}
	}
}
