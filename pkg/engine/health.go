package engine

import (
	"context"
	"time"

	"github.com/cuemby/tugtainer/pkg/hostclient"
)

// healthWaitInterval is the poll period; a package variable (rather than
// the defaultHealthWaitInterval constant directly) so tests can shrink it
// instead of waiting out real 5s polls.
var healthWaitInterval = defaultHealthWaitInterval

// waitHealthy implements spec §4.7.4: poll container.inspect every 5s up
// to timeout. A container with a healthcheck must reach health=healthy;
// one without just needs status=running. On the final attempt a
// healthcheck container with health=unknown and status=running also
// counts as healthy, to tolerate images whose healthcheck definition
// isn't visible yet at inspect time.
func waitHealthy(ctx context.Context, client hostclient.HostClient, ref string, hasHealthcheck bool, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultHealthWaitTimeout
	}
	deadline := time.Now().Add(timeout)

	ctx, cancel := withTimeout(ctx, timeout+healthWaitInterval)
	defer cancel()

	for {
		inspect, err := client.InspectContainer(ctx, ref)
		final := time.Now().After(deadline)

		if err == nil {
			if hasHealthcheck {
				switch inspect.State.Health {
				case "healthy":
					return true
				case "unknown":
					if final && inspect.State.Status == "running" {
						return true
					}
				}
			} else if inspect.State.Status == "running" {
				return true
			}
		}

		if final {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(healthWaitInterval):
		}
	}
}
