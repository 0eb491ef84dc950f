// Package types holds the data model shared by the controller and the
// agent: hosts, container policy rows, the agent's inspect views, and the
// in-memory group/progress objects the check/update engine works with.
package types

import "time"

// Host is a container-engine host the controller monitors.
type Host struct {
	ID                 string
	Name               string
	Enabled            bool
	URL                string
	Secret             string // shared HMAC secret; empty means unsigned
	Timeout            time.Duration
	ContainerHCTimeout time.Duration // healthcheck wait timeout override
	Prune              bool
	PruneAll           bool
}

// ContainerPolicy is the persisted policy row for one container on one
// host, uniquely keyed by (HostID, Name).
type ContainerPolicy struct {
	HostID          string
	Name            string
	CheckEnabled    bool
	UpdateEnabled   bool
	UpdateAvailable bool
	ImageID         string
	LocalDigests    []string
	RemoteDigests   []string
	CheckedAt       time.Time
	UpdatedAt       time.Time
	CreatedAt       time.Time
	ModifiedAt      time.Time
}

// ContainerState is the authoritative run state reported by the engine.
type ContainerState struct {
	Status string // e.g. "running", "exited", "created"
	Health string // "healthy", "unhealthy", "starting", "unknown", "" (none configured)
}

// ContainerConfig is the subset of the embedded engine's container
// config the check/update engine reads and merges.
type ContainerConfig struct {
	Image      string // config.image: the spec the container was created from
	Entrypoint []string
	Cmd        []string
	WorkingDir string
	Env        []string
	Labels     map[string]string

	// Networks are the container's attached network names, primary
	// first. Only the primary network is expressible at create time;
	// every network beyond it requires a post-create "network connect"
	// (see GroupItem.PostCreateCmd).
	Networks []string
	// NetworkAliases maps each network name in Networks to that
	// network's configured aliases, if any.
	NetworkAliases map[string][]string
}

// Label keys the engine reads off a container's config.
const (
	LabelComposeProject     = "com.docker.compose.project"
	LabelComposeConfigFiles = "com.docker.compose.project.config_files"
	LabelComposeService     = "com.docker.compose.service"
	LabelComposeDependsOn   = "com.docker.compose.depends_on"

	// LabelProtected marks a container as ineligible for any automated
	// lifecycle change, regardless of policy. The key is a configuration
	// constant per spec's open question on the convention.
	LabelProtected = "tugtainer.protected"
)

// ContainerInspect is the agent's authoritative view of one container.
type ContainerInspect struct {
	ID      string
	Name    string
	Image   string // image id currently backing the container
	Config  ContainerConfig
	State   ContainerState
	HasHealthcheck bool
}

// Protected reports whether the protection label is set to "true".
func (c *ContainerInspect) Protected() bool {
	return c.Config.Labels[LabelProtected] == "true"
}

// ImageInspect is the agent's view of one local image.
type ImageInspect struct {
	ID           string
	RepoDigests  []string
	Architecture string
	OS           string
	Config       ContainerConfig
}

// ManifestPlatform identifies one variant of a multi-platform manifest.
type ManifestPlatform struct {
	Architecture string
	OS           string
}

// ManifestDescriptor is one platform-variant entry of a manifest list, or
// (when Platform is zero) the single-platform manifest's own descriptor.
type ManifestDescriptor struct {
	Digest   string
	Platform ManifestPlatform
}

// Manifest is the result of a manifest.inspect call: either a
// multi-platform index (len(Entries) > 1, or Entries carrying distinct
// platforms) or a single-platform manifest exposing ConfigDigest.
type Manifest struct {
	Entries      []ManifestDescriptor
	ConfigDigest string // set when the manifest is single-platform
}

// ImageListOptions filters an image.list call.
type ImageListOptions struct {
	Filters map[string]string
}

// ImagePruneOptions controls an image.prune call.
type ImagePruneOptions struct {
	All bool
}

// CreateContainerBody is the request body for container.create: a merged
// configuration ready to hand to the embedded container engine.
type CreateContainerBody struct {
	Name       string
	Image      string
	Entrypoint []string          `json:",omitempty"`
	Cmd        []string          `json:",omitempty"`
	WorkingDir string            `json:",omitempty"`
	Env        []string          `json:",omitempty"`
	Labels     map[string]string `json:",omitempty"`

	// Networks/NetworkAliases carry the container's network attachments
	// through to create; only Networks[0] is attached by the create
	// call itself, the rest are attached by GroupItem.PostCreateCmd.
	Networks       []string            `json:",omitempty"`
	NetworkAliases map[string][]string `json:",omitempty"`
}
