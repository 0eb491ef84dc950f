// Package engine implements the Check/Update Engine (C8): the
// per-container availability check, per-group recreate sequencing,
// per-host orchestration, and the global fan-out across hosts.
//
// Grounded in the teacher's pkg/reconciler.Reconciler for the overall
// shape of a periodic cycle (component logger, metrics.NewTimer, a
// mutex-guarded single-flight run) and pkg/scheduler.Scheduler for the
// per-entity iteration shape, generalized from "service with containers"
// to "host with groups of containers."
package engine

import (
	"context"
	"time"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/hostregistry"
	"github.com/cuemby/tugtainer/pkg/notifier"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/store"
	"github.com/cuemby/tugtainer/pkg/types"
)

const (
	defaultHealthWaitInterval = 5 * time.Second
	defaultHealthWaitTimeout  = 2 * time.Minute
	defaultHostConcurrency    = 7
)

// SelfIdentity reports whether a container is the one running the
// controller itself (see pkg/group.SelfIdentity).
type SelfIdentity func(types.ContainerInspect) bool

// Engine owns the subsystems the check/update cycle depends on: the
// Host Registry, the Store Adapter, the Progress Cache, and the
// Notifier Bridge. One Engine serves the whole controller process.
type Engine struct {
	Registry  *hostregistry.Registry
	Store     store.Store
	Progress  *progress.Cache
	Notifier  *notifier.Bridge
	IsSelf    SelfIdentity

	// HostConcurrency bounds how many hosts check_all runs concurrently.
	// Zero uses the default of 7, mirroring the host-client worker pool
	// size spec §5 names.
	HostConcurrency int
}

func (e *Engine) hostConcurrency() int {
	if e.HostConcurrency > 0 {
		return e.HostConcurrency
	}
	return defaultHostConcurrency
}

// clientFor resolves the HostClient for a host, constructing one lazily
// if the registry has no entry yet (defensive, per spec §4.8).
func (e *Engine) clientFor(host types.Host) hostclient.HostClient {
	return e.Registry.GetOrCreate(host)
}

func healthWaitTimeout(host types.Host) time.Duration {
	if host.ContainerHCTimeout > 0 {
		return host.ContainerHCTimeout
	}
	return defaultHealthWaitTimeout
}

func timePtr(t time.Time) *time.Time { return &t }
func boolPtr(b bool) *bool           { return &b }
func strPtr(s string) *string        { return &s }

// withTimeout derives a context bounded by d from ctx, unless d <= 0.
// Used by waitHealthy to bound the whole poll loop, not just its final
// deadline check, so a hung InspectContainer call can't stall a run
// past the configured health-wait timeout plus one poll interval (the
// extra interval leaves room for the final attempt after the deadline).
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
