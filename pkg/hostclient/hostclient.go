// Package hostclient implements the typed client the check/update engine
// uses to talk to one agent: one signed HTTP round trip per operation,
// classified into transport, protocol, and typed engine errors.
//
// The shape follows the teacher's own pkg/client.Client: a thin wrapper
// struct holding a transport plus one exported method per remote
// operation, constructed from a Config. The transport here is signed
// HTTP/JSON rather than mTLS gRPC, per the agent HTTP surface this
// project's spec names.
package hostclient

import (
	"context"

	"github.com/cuemby/tugtainer/pkg/types"
)

// HostClient is the interface the check/update engine programs against.
// Host Registry (pkg/hostregistry) hands out values satisfying this
// interface; tests substitute a fake.
type HostClient interface {
	ListContainers(ctx context.Context, all bool) ([]types.ContainerInspect, error)
	ContainerExists(ctx context.Context, ref string) (bool, error)
	InspectContainer(ctx context.Context, ref string) (types.ContainerInspect, error)
	CreateContainer(ctx context.Context, body types.CreateContainerBody) (types.ContainerInspect, error)
	StartContainer(ctx context.Context, ref string) error
	StopContainer(ctx context.Context, ref string) error
	RestartContainer(ctx context.Context, ref string) error
	KillContainer(ctx context.Context, ref string) error
	PauseContainer(ctx context.Context, ref string) error
	UnpauseContainer(ctx context.Context, ref string) error
	RemoveContainer(ctx context.Context, ref string) error

	ListImages(ctx context.Context, opts types.ImageListOptions) ([]types.ImageInspect, error)
	InspectImage(ctx context.Context, specOrID string) (types.ImageInspect, error)
	PullImage(ctx context.Context, spec string) (types.ImageInspect, error)
	TagImage(ctx context.Context, specOrID, tag string) error
	PruneImages(ctx context.Context, opts types.ImagePruneOptions) (string, error)

	InspectManifest(ctx context.Context, specOrDigest string) (types.Manifest, error)

	RunCommand(ctx context.Context, argv []string) (stdout, stderr string, err error)

	Health(ctx context.Context) error
	Access(ctx context.Context) error
}
