package engine

import (
	"context"
	"sync"

	"github.com/cuemby/tugtainer/pkg/log"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/types"
)

// CheckAll implements spec §4.7.6: the global fan-out. It reads all
// enabled hosts, runs check_host on each concurrently (bounded by
// HostConcurrency), aggregates results by host id into the "all"
// progress cache entry, and dispatches a notification for the run.
func (e *Engine) CheckAll(ctx context.Context) map[string]*types.HostResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CheckAllDuration)

	logger := log.WithComponent("engine")

	if !e.Progress.TryStart(progress.AllKey, types.StatusPreparing) {
		logger.Info().Msg("check_all already running, skipping")
		metrics.CheckAllRunsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	hosts, err := e.Store.GetEnabledHosts(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("loading enabled hosts failed")
		e.Progress.Update(progress.AllKey, func(p *types.Progress) { p.Status = types.StatusError })
		metrics.CheckAllRunsTotal.WithLabelValues("error").Inc()
		return nil
	}

	e.Progress.Update(progress.AllKey, func(p *types.Progress) {
		p.Status = types.StatusChecking
		p.HostsTotal = len(hosts)
	})

	metrics.HostsTotal.WithLabelValues("true").Set(float64(len(hosts)))

	results := make(map[string]*types.HostResult, len(hosts))
	ordered := make([]*types.HostResult, 0, len(hosts))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.hostConcurrency())

	for _, host := range hosts {
		host := host
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result := e.checkHost(ctx, host, "")

			mu.Lock()
			if result != nil {
				results[host.ID] = result
				ordered = append(ordered, result)
			}
			e.Progress.Update(progress.AllKey, func(p *types.Progress) {
				p.HostsDone++
				if p.Hosts == nil {
					p.Hosts = make(map[string]*types.HostResult)
				}
				if result != nil {
					p.Hosts[host.ID] = result
				}
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	e.Progress.Update(progress.AllKey, func(p *types.Progress) { p.Status = types.StatusDone })
	metrics.CheckAllRunsTotal.WithLabelValues("done").Inc()

	if e.Notifier != nil {
		if err := e.Notifier.Dispatch(ctx, ordered); err != nil {
			logger.Warn().Err(err).Msg("notification dispatch failed")
			metrics.NotificationsSentTotal.WithLabelValues("error").Inc()
		} else {
			metrics.NotificationsSentTotal.WithLabelValues("ok").Inc()
		}
	}

	return results
}

// CheckHost runs check_host for one host id, for the operator surface's
// per-host trigger. Returns nil if the host is unknown or disabled.
func (e *Engine) CheckHost(ctx context.Context, hostID string) *types.HostResult {
	host, ok, err := e.hostByID(ctx, hostID)
	if err != nil || !ok || !host.Enabled {
		return nil
	}
	return e.checkHost(ctx, host, "")
}

// ForceUpdateContainer runs check_host for one host with a single
// container's action forced to update for this run, per spec §4.4's
// manual force-update rule.
func (e *Engine) ForceUpdateContainer(ctx context.Context, hostID, containerName string) *types.HostResult {
	host, ok, err := e.hostByID(ctx, hostID)
	if err != nil || !ok || !host.Enabled {
		return nil
	}
	return e.checkHost(ctx, host, containerName)
}

func (e *Engine) hostByID(ctx context.Context, hostID string) (types.Host, bool, error) {
	return e.Store.GetHost(ctx, hostID)
}
