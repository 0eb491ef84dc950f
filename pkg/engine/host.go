package engine

import (
	"context"

	"github.com/cuemby/tugtainer/pkg/group"
	"github.com/cuemby/tugtainer/pkg/log"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/types"
)

// checkHost implements spec §4.7.5: list containers once, build groups,
// iterate groups sequentially (never concurrently, to avoid disturbing
// shared networks within one host), then optionally prune images.
func (e *Engine) checkHost(ctx context.Context, host types.Host, forceUpdate string) *types.HostResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CheckHostDuration, host.ID)

	hostKey := progress.HostKey(host.ID, host.Name)
	logger := log.WithHost(host.ID, host.Name)

	if !e.Progress.TryStart(hostKey, types.StatusPreparing) {
		logger.Info().Msg("host run already in progress, skipping")
		return nil
	}

	client := e.clientFor(host)

	containers, err := client.ListContainers(ctx, true)
	if err != nil {
		logger.Error().Err(err).Msg("listing containers failed")
		result := &types.HostResult{HostID: host.ID, HostName: host.Name, Status: types.StatusError, Error: err.Error()}
		e.Progress.Update(hostKey, func(p *types.Progress) { p.Status = types.StatusError; p.Host = result })
		return result
	}

	policy := func(name string) *types.ContainerPolicy {
		row, err := e.Store.GetContainer(ctx, host.ID, name)
		if err != nil {
			logger.Warn().Err(err).Str("container", name).Msg("loading policy row failed")
			return nil
		}
		return row
	}

	groups := group.Build(group.Options{
		Containers:  containers,
		Policy:      policy,
		IsSelf:      group.SelfIdentity(e.IsSelf),
		ForceUpdate: forceUpdate,
	})

	e.Progress.Update(hostKey, func(p *types.Progress) { p.Status = types.StatusChecking })

	result := &types.HostResult{HostID: host.ID, HostName: host.Name, Status: types.StatusDone}
	for _, g := range groups {
		if g.IsSelf {
			// the controller's own container is never auto-updated.
			continue
		}
		groupResult, ran := e.checkGroup(ctx, host.ID, host.Name, client, host, g)
		if !ran {
			continue
		}
		result.Groups = append(result.Groups, *groupResult)
	}

	if host.Prune {
		e.Progress.Update(hostKey, func(p *types.Progress) { p.Status = types.StatusPruning })
		output, err := client.PruneImages(ctx, types.ImagePruneOptions{All: host.PruneAll})
		if err != nil {
			logger.Warn().Err(err).Msg("image prune failed (host result unaffected)")
		} else {
			result.PruneOutput = output
		}
	}

	e.Progress.Update(hostKey, func(p *types.Progress) { p.Status = types.StatusDone; p.Host = result })
	return result
}
