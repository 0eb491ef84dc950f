// Package store defines the Store Adapter (C10): the engine-facing
// persistence interface plus the two tables of spec §6 (hosts,
// containers), and a BoltDB-backed implementation.
package store

import (
	"context"
	"time"

	"github.com/cuemby/tugtainer/pkg/types"
)

// ContainerPatch is a partial update to one container policy row.
// insert_or_update_container merges only the non-nil scalar fields and
// only the non-nil slice fields; a caller that wants to explicitly clear
// a digest set passes a non-nil empty slice, not nil.
type ContainerPatch struct {
	CheckEnabled    *bool
	UpdateEnabled   *bool
	UpdateAvailable *bool
	ImageID         *string
	LocalDigests    []string
	RemoteDigests   []string
	CheckedAt       *time.Time
	UpdatedAt       *time.Time
}

// Store is the persistence boundary the check/update engine and the
// controller's host-management surface depend on. Only the engine-facing
// slice is mandated by spec §4.9 (GetEnabledHosts, GetHostContainers,
// InsertOrUpdateContainer, GetSelfContainerRow); host CRUD is the
// supporting surface the operator and config layer need to populate the
// hosts table spec §6 names.
type Store interface {
	GetEnabledHosts(ctx context.Context) ([]types.Host, error)
	ListHosts(ctx context.Context) ([]types.Host, error)
	GetHost(ctx context.Context, id string) (types.Host, bool, error)
	PutHost(ctx context.Context, host types.Host) error
	DeleteHost(ctx context.Context, id string) error

	GetHostContainers(ctx context.Context, hostID string) ([]types.ContainerPolicy, error)
	GetContainer(ctx context.Context, hostID, name string) (*types.ContainerPolicy, error)
	InsertOrUpdateContainer(ctx context.Context, hostID, name string, patch ContainerPatch) error

	// GetSelfContainerRow returns the policy row for the container
	// running the controller itself, identified by the self host id/name
	// pair the Store was configured with. Returns (nil, nil) if the row
	// does not exist yet (lazily created on first policy write).
	GetSelfContainerRow(ctx context.Context) (*types.ContainerPolicy, error)

	Close() error
}
