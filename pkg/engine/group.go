package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/log"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/progress"
	"github.com/cuemby/tugtainer/pkg/store"
	"github.com/cuemby/tugtainer/pkg/types"
)

var errUnhealthy = errors.New("container did not become healthy")

// checkGroup implements spec §4.7.2. The returned bool is false only when
// the group's progress entry was already active ("already running");
// the caller should treat that as a skip, not an error.
func (e *Engine) checkGroup(ctx context.Context, hostID, hostName string, client hostclient.HostClient, host types.Host, group *types.Group) (*types.GroupResult, bool) {
	groupKey := progress.GroupKey(progress.HostKey(hostID, hostName), group.Name)
	logger := log.WithGroup(hostID, group.Name)

	if !e.Progress.TryStart(groupKey, types.StatusPreparing) {
		logger.Info().Msg("group run already in progress, skipping")
		return nil, false
	}

	for _, it := range group.Items {
		it.PreImage = it.Inspect.Image
	}

	e.Progress.Update(groupKey, func(p *types.Progress) { p.Status = types.StatusChecking })
	for _, it := range group.Items {
		if it.Action == types.ActionCheck || it.Action == types.ActionUpdate {
			checkContainerUpdateAvailable(ctx, logger, client, e.Store, hostID, it)
		}
	}

	anyWillUpdate := false
	for _, it := range group.Items {
		it.WillUpdate = isEligibleForUpdate(it)
		anyWillUpdate = anyWillUpdate || it.WillUpdate
	}

	if !anyWillUpdate {
		return e.finishGroup(groupKey, group, hostID, hostName, types.StatusDone), true
	}

	e.Progress.Update(groupKey, func(p *types.Progress) { p.Status = types.StatusUpdating })

	if aborted := e.pullPhase(ctx, client, logger, group); aborted {
		return e.finishGroup(groupKey, group, hostID, hostName, types.StatusError), true
	}

	stopped, aborted := e.stopPhase(ctx, client, logger, group)
	if aborted {
		startAllRecovery(ctx, client, group, stopped)
		return e.finishGroup(groupKey, group, hostID, hostName, types.StatusError), true
	}

	e.applyPhase(ctx, client, logger, host, group, stopped)

	for _, it := range group.Items {
		if it.TempResult == types.ResultUpdated {
			patch := store.ContainerPatch{
				UpdatedAt:       timePtr(time.Now()),
				LocalDigests:    nonNil(it.RemoteDigests),
				UpdateAvailable: boolPtr(false),
			}
			if err := e.Store.InsertOrUpdateContainer(ctx, hostID, it.Inspect.Name, patch); err != nil {
				logger.Warn().Err(err).Str("container", it.Inspect.Name).Msg("persisting updated row failed")
			}
		}
	}

	return e.finishGroup(groupKey, group, hostID, hostName, types.StatusDone), true
}

func isEligibleForUpdate(it *types.GroupItem) bool {
	available := it.TempResult == types.ResultAvailable || it.TempResult == types.ResultAvailableNotified
	return available && it.Action == types.ActionUpdate && !it.Protected && it.Inspect.State.Status == "running"
}

func (e *Engine) finishGroup(groupKey string, group *types.Group, hostID, hostName string, status types.RunStatus) *types.GroupResult {
	result := compileGroupResult(group, hostID, hostName)
	e.Progress.Update(groupKey, func(p *types.Progress) {
		p.Status = status
		p.Group = result
	})
	return result
}

func compileGroupResult(group *types.Group, hostID, hostName string) *types.GroupResult {
	res := &types.GroupResult{Name: group.Name}
	for _, it := range group.Items {
		cr := types.ContainerResult{
			HostID:   hostID,
			HostName: hostName,
			Name:     it.Inspect.Name,
			Image:    it.Inspect.Config.Image,
			Result:   it.TempResult,
		}
		switch it.TempResult {
		case types.ResultAvailable, types.ResultAvailableNotified:
			res.Available++
		case types.ResultUpdated:
			res.Updated++
		case types.ResultRolledBack:
			res.RolledBack++
		case types.ResultFailed:
			res.Failed++
		}
		res.Items = append(res.Items, cr)
		metrics.ContainerOutcomesTotal.WithLabelValues(string(it.TempResult)).Inc()
	}
	return res
}

// pullPhase implements spec §4.7.2 step 3. Returns true if a pull
// failure should abort the group entirely.
func (e *Engine) pullPhase(ctx context.Context, client hostclient.HostClient, logger zerolog.Logger, group *types.Group) bool {
	for _, it := range group.Items {
		if !it.WillUpdate {
			continue
		}
		pulled, err := client.PullImage(ctx, it.Inspect.Config.Image)
		if err != nil {
			logger.Error().Err(err).Str("container", it.Inspect.Name).Msg("image pull failed, aborting group")
			return true
		}
		it.PulledImageID = pulled.ID
	}
	return false
}

// stopPhase implements spec §4.7.2 step 4: iterate in reverse order,
// computing the create body and post-create network-attach commands for
// will-update items before stopping each running, unprotected container.
// Returns the set of items actually stopped and whether the phase must
// abort (start-all recovery).
func (e *Engine) stopPhase(ctx context.Context, client hostclient.HostClient, logger zerolog.Logger, group *types.Group) (map[*types.GroupItem]bool, bool) {
	stopped := make(map[*types.GroupItem]bool)

	for i := len(group.Items) - 1; i >= 0; i-- {
		it := group.Items[i]
		if it.Protected || it.Inspect.State.Status != "running" {
			continue
		}

		if it.WillUpdate {
			pulledImage, err := client.InspectImage(ctx, it.PulledImageID)
			if err != nil {
				logger.Error().Err(err).Str("container", it.Inspect.Name).Msg("inspecting pulled image failed")
				return stopped, true
			}
			it.MergedConfig = mergeConfig(it.Inspect.Name, it.Inspect.Config.Image, it.Inspect.Config, pulledImage.Config)
			it.PostCreateCmd = postCreateNetworkCommands(it.Inspect.Name, it.Inspect.Config.Networks, it.Inspect.Config.NetworkAliases)
		}

		if err := client.StopContainer(ctx, it.Inspect.Name); err != nil {
			logger.Error().Err(err).Str("container", it.Inspect.Name).Msg("stop failed")
			return stopped, true
		}
		stopped[it] = true
	}

	return stopped, false
}

// startAllRecovery restarts every stopped container in original
// (forward) order, per spec §4.7.2 step 4's failure recovery.
func startAllRecovery(ctx context.Context, client hostclient.HostClient, group *types.Group, stopped map[*types.GroupItem]bool) {
	for _, it := range group.Items {
		if stopped[it] {
			_ = client.StartContainer(ctx, it.Inspect.Name)
		}
	}
}

// applyPhase implements spec §4.7.2 step 5: forward iteration, applying
// updates while no earlier item in this run has failed; everything else
// is just restarted.
func (e *Engine) applyPhase(ctx context.Context, client hostclient.HostClient, logger zerolog.Logger, host types.Host, group *types.Group, stopped map[*types.GroupItem]bool) {
	anyFailed := false

	for _, it := range group.Items {
		if !stopped[it] {
			continue
		}

		if it.WillUpdate && !anyFailed {
			if applyUpdate(ctx, client, logger, host, it) {
				anyFailed = true
			}
			continue
		}

		if err := client.StartContainer(ctx, it.Inspect.Name); err != nil {
			logger.Warn().Err(err).Str("container", it.Inspect.Name).Msg("restart failed")
			continue
		}
		if !waitHealthy(ctx, client, it.Inspect.Name, it.Inspect.HasHealthcheck, healthWaitTimeout(host)) {
			logger.Warn().Str("container", it.Inspect.Name).Msg("container unhealthy after restart")
		}
	}
}

// applyUpdate recreates one container with its merged config, rolling
// back to the original image and config on failure. Returns true iff
// the rollback itself failed, setting the run's sticky any_failed flag.
func applyUpdate(ctx context.Context, client hostclient.HostClient, logger zerolog.Logger, host types.Host, it *types.GroupItem) bool {
	name := it.Inspect.Name
	spec := it.Inspect.Config.Image

	runSequence := func(body *types.CreateContainerBody) error {
		if _, err := client.CreateContainer(ctx, *body); err != nil {
			return err
		}
		if err := client.StartContainer(ctx, name); err != nil {
			return err
		}
		for _, cmd := range it.PostCreateCmd {
			if _, _, err := client.RunCommand(ctx, cmd); err != nil {
				return err
			}
		}
		if !waitHealthy(ctx, client, name, it.Inspect.HasHealthcheck, healthWaitTimeout(host)) {
			return errUnhealthy
		}
		return nil
	}

	if err := client.RemoveContainer(ctx, name); err != nil {
		logger.Warn().Err(err).Str("container", name).Msg("remove before update failed, rolling back")
		return rollback(ctx, client, logger, host, it, spec)
	}

	if err := runSequence(it.MergedConfig); err == nil {
		it.TempResult = types.ResultUpdated
		if inspect, ierr := client.InspectContainer(ctx, name); ierr == nil {
			it.PostImage = inspect.Image
		}
		return false
	} else {
		logger.Warn().Err(err).Str("container", name).Msg("update failed, rolling back")
	}

	return rollback(ctx, client, logger, host, it, spec)
}

func rollback(ctx context.Context, client hostclient.HostClient, logger zerolog.Logger, host types.Host, it *types.GroupItem, spec string) bool {
	name := it.Inspect.Name

	_ = client.StopContainer(ctx, name)
	_ = client.RemoveContainer(ctx, name)

	if err := client.TagImage(ctx, it.PreImage, spec); err != nil {
		logger.Error().Err(err).Str("container", name).Msg("rollback re-tag failed")
		it.TempResult = types.ResultFailed
		return true
	}

	rollbackBody := unmergedConfig(name, spec, it.Inspect.Config)
	if _, err := client.CreateContainer(ctx, *rollbackBody); err != nil {
		logger.Error().Err(err).Str("container", name).Msg("rollback create failed")
		it.TempResult = types.ResultFailed
		return true
	}
	if err := client.StartContainer(ctx, name); err != nil {
		logger.Error().Err(err).Str("container", name).Msg("rollback start failed")
		it.TempResult = types.ResultFailed
		return true
	}
	for _, cmd := range it.PostCreateCmd {
		if _, _, err := client.RunCommand(ctx, cmd); err != nil {
			logger.Error().Err(err).Str("container", name).Msg("rollback post-create command failed")
			it.TempResult = types.ResultFailed
			return true
		}
	}
	if !waitHealthy(ctx, client, name, it.Inspect.HasHealthcheck, healthWaitTimeout(host)) {
		logger.Error().Str("container", name).Msg("rollback did not become healthy")
		it.TempResult = types.ResultFailed
		return true
	}

	it.TempResult = types.ResultRolledBack
	return false
}
