package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/tugtainer/pkg/digest"
	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/store"
	"github.com/cuemby/tugtainer/pkg/types"
)

// checkContainerUpdateAvailable implements spec §4.7.1. It never lets an
// error escape above container scope: any failure is logged and the
// item's result defaults to not_available.
func checkContainerUpdateAvailable(ctx context.Context, logger zerolog.Logger, client hostclient.HostClient, st store.Store, hostID string, item *types.GroupItem) {
	metrics.ContainersCheckedTotal.Inc()

	if item.Inspect.Config.Image == "" {
		item.TempResult = types.ResultNotAvailable
		return
	}

	resolver := digest.New(client)
	result, err := resolver.Resolve(ctx, item.Inspect, item.Policy)
	if err != nil {
		logger.Warn().Err(err).Str("container", item.Inspect.Name).Msg("digest resolution failed")
		item.TempResult = types.ResultNotAvailable
		return
	}

	item.LocalDigests = result.LocalDigests
	item.RemoteDigests = result.RemoteDigests

	now := time.Now()
	patch := store.ContainerPatch{
		ImageID:      strPtr(result.ImageID),
		LocalDigests: nonNil(result.LocalDigests),
		CheckedAt:    timePtr(now),
	}

	switch {
	case result.Notified:
		item.TempResult = types.ResultAvailableNotified
		patch.UpdateAvailable = boolPtr(true)
	case result.Available:
		item.TempResult = types.ResultAvailable
		patch.UpdateAvailable = boolPtr(true)
		patch.RemoteDigests = nonNil(result.RemoteDigests)
		metrics.UpdatesAvailableTotal.Inc()
	default:
		item.TempResult = types.ResultNotAvailable
		patch.UpdateAvailable = boolPtr(false)
		// Open question resolved per spec §9: clear remote_digests on any
		// not_available outcome so a later availability re-report isn't
		// suppressed as a stale duplicate.
		patch.RemoteDigests = []string{}
	}

	if err := st.InsertOrUpdateContainer(ctx, hostID, item.Inspect.Name, patch); err != nil {
		logger.Warn().Err(err).Str("container", item.Inspect.Name).Msg("persisting container policy row failed")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
