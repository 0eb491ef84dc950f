package containerengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/content"
	"github.com/containerd/containerd/errdefs"
	ctdimages "github.com/containerd/containerd/images"
	"github.com/containerd/containerd/remotes/docker"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cuemby/tugtainer/pkg/types"
)

// ListImages lists local images, optionally restricted by label filters.
func (e *Engine) ListImages(ctx context.Context, opts types.ImageListOptions) ([]types.ImageInspect, error) {
	ctx = e.ns(ctx)
	imgs, err := e.client.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	out := make([]types.ImageInspect, 0, len(imgs))
	for _, img := range imgs {
		if !matchesFilters(img.Labels(), opts.Filters) {
			continue
		}
		inspect, err := e.toImageInspect(ctx, img)
		if err != nil {
			continue
		}
		out = append(out, inspect)
	}
	return out, nil
}

func matchesFilters(labels, filters map[string]string) bool {
	for k, v := range filters {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// InspectImage looks up one image by name or content digest.
func (e *Engine) InspectImage(ctx context.Context, specOrID string) (types.ImageInspect, error) {
	ctx = e.ns(ctx)
	img, err := e.client.GetImage(ctx, specOrID)
	if err != nil {
		return types.ImageInspect{}, fmt.Errorf("get image %s: %w", specOrID, err)
	}
	return e.toImageInspect(ctx, img)
}

func (e *Engine) toImageInspect(ctx context.Context, img containerd.Image) (types.ImageInspect, error) {
	target := img.Target()
	inspect := types.ImageInspect{
		ID:          target.Digest.String(),
		RepoDigests: []string{img.Name() + "@" + target.Digest.String()},
	}

	blob, err := readImageConfig(ctx, img)
	if err != nil {
		return inspect, nil // config unreadable: ID/RepoDigests still useful
	}
	inspect.Architecture = blob.Architecture
	inspect.OS = blob.OS
	inspect.Config = types.ContainerConfig{
		Entrypoint: blob.Config.Entrypoint,
		Cmd:        blob.Config.Cmd,
		Env:        blob.Config.Env,
	}
	return inspect, nil
}

// imageConfigBlob is the subset of the OCI/Docker image config JSON this
// package reads. Decoded by hand (rather than via an ocispec.Image
// struct) because the Healthcheck field is a Docker extension the
// official OCI image-spec schema doesn't declare.
type imageConfigBlob struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
	Config       struct {
		Entrypoint  []string `json:"Entrypoint"`
		Cmd         []string `json:"Cmd"`
		Env         []string `json:"Env"`
		Healthcheck *struct {
			Test []string `json:"Test"`
		} `json:"Healthcheck,omitempty"`
	} `json:"config"`
}

func readImageConfig(ctx context.Context, img containerd.Image) (imageConfigBlob, error) {
	desc, err := img.Config(ctx)
	if err != nil {
		return imageConfigBlob{}, fmt.Errorf("image config descriptor: %w", err)
	}
	raw, err := content.ReadBlob(ctx, img.ContentStore(), desc)
	if err != nil {
		return imageConfigBlob{}, fmt.Errorf("read image config blob: %w", err)
	}
	var blob imageConfigBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return imageConfigBlob{}, fmt.Errorf("decode image config: %w", err)
	}
	return blob, nil
}

func hasHealthcheck(ctx context.Context, img containerd.Image) bool {
	blob, err := readImageConfig(ctx, img)
	if err != nil {
		return false
	}
	return blob.Config.Healthcheck != nil && len(blob.Config.Healthcheck.Test) > 0
}

// PullImage pulls and unpacks an image from a registry.
func (e *Engine) PullImage(ctx context.Context, spec string) (types.ImageInspect, error) {
	ctx = e.ns(ctx)
	img, err := e.client.Pull(ctx, spec, containerd.WithPullUnpack)
	if err != nil {
		return types.ImageInspect{}, fmt.Errorf("pull image %s: %w", spec, err)
	}
	return e.toImageInspect(ctx, img)
}

// TagImage creates (or replaces) an image store entry named tag pointing
// at the same content as specOrID. containerd has no Docker-style "tag"
// verb; this is the closest equivalent (a second images.Image record
// sharing the target descriptor).
func (e *Engine) TagImage(ctx context.Context, specOrID, tag string) error {
	ctx = e.ns(ctx)
	is := e.client.ImageService()

	img, err := is.Get(ctx, specOrID)
	if err != nil {
		return fmt.Errorf("get image %s: %w", specOrID, err)
	}
	img.Name = tag

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return fmt.Errorf("tag image %s as %s: %w", specOrID, tag, err)
		}
		if _, err := is.Update(ctx, img); err != nil {
			return fmt.Errorf("retag image %s as %s: %w", specOrID, tag, err)
		}
	}
	return nil
}

// PruneImages deletes every image not referenced by any container's
// config, returning the newline-joined list of removed image names.
// opts.All is accepted for parity with the remote contract; containerd
// names every image it stores, so there is no "dangling" subset to
// distinguish from "all unused".
func (e *Engine) PruneImages(ctx context.Context, opts types.ImagePruneOptions) (string, error) {
	ctx = e.ns(ctx)
	is := e.client.ImageService()

	images, err := is.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list images: %w", err)
	}

	inUse := make(map[string]bool)
	if containersList, err := e.client.Containers(ctx); err == nil {
		for _, c := range containersList {
			if info, err := c.Info(ctx); err == nil {
				inUse[info.Image] = true
			}
		}
	}

	var removed []string
	for _, img := range images {
		if inUse[img.Name] {
			continue
		}
		if err := is.Delete(ctx, img.Name, ctdimages.SynchronousDelete()); err != nil {
			continue
		}
		removed = append(removed, img.Name)
	}
	return strings.Join(removed, "\n"), nil
}

// InspectManifest resolves a registry reference (or digest) to its raw
// manifest without pulling the image, so the digest resolver can compare
// remote layer/config digests against local ones.
func (e *Engine) InspectManifest(ctx context.Context, specOrDigest string) (types.Manifest, error) {
	resolver := docker.NewResolver(docker.ResolverOptions{})

	name, desc, err := resolver.Resolve(ctx, specOrDigest)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("resolve %s: %w", specOrDigest, err)
	}
	fetcher, err := resolver.Fetcher(ctx, name)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("fetcher for %s: %w", name, err)
	}
	rc, err := fetcher.Fetch(ctx, desc)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("fetch manifest %s: %w", specOrDigest, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return types.Manifest{}, fmt.Errorf("read manifest %s: %w", specOrDigest, err)
	}

	switch desc.MediaType {
	case ocispec.MediaTypeImageIndex, "application/vnd.docker.distribution.manifest.list.v2+json":
		var index ocispec.Index
		if err := json.Unmarshal(raw, &index); err != nil {
			return types.Manifest{}, fmt.Errorf("decode manifest list: %w", err)
		}
		entries := make([]types.ManifestDescriptor, 0, len(index.Manifests))
		for _, m := range index.Manifests {
			entry := types.ManifestDescriptor{Digest: m.Digest.String()}
			if m.Platform != nil {
				entry.Platform = types.ManifestPlatform{Architecture: m.Platform.Architecture, OS: m.Platform.OS}
			}
			entries = append(entries, entry)
		}
		return types.Manifest{Entries: entries}, nil
	default:
		var manifest ocispec.Manifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return types.Manifest{}, fmt.Errorf("decode manifest: %w", err)
		}
		return types.Manifest{ConfigDigest: manifest.Config.Digest.String()}, nil
	}
}
