// Package digest resolves the platform-specific digest set that
// identifies the image variant actually running on a container (C6),
// avoiding false positives from multi-arch manifests whose top-level
// digest differs across platforms while the runtime variant is
// identical.
package digest

import (
	"context"
	"sort"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/types"
)

// Resolver computes local/remote digest sets through one host's client.
type Resolver struct {
	client hostclient.HostClient
}

// New builds a Resolver bound to client.
func New(client hostclient.HostClient) *Resolver {
	return &Resolver{client: client}
}

// Result is the outcome of one Resolve call.
type Result struct {
	ImageID       string
	LocalDigests  []string
	RemoteDigests []string
	Available     bool
	Notified      bool // available(notified): remote set matches the row's previous remote_digests
}

// Resolve implements spec §4.5 steps 1-5 for one container. policy may be
// nil (row not yet persisted).
func (r *Resolver) Resolve(ctx context.Context, inspect types.ContainerInspect, policy *types.ContainerPolicy) (*Result, error) {
	image, err := r.client.InspectImage(ctx, inspect.Image)
	if err != nil {
		return nil, err
	}

	if len(image.RepoDigests) == 0 {
		return &Result{ImageID: image.ID}, nil
	}
	if image.Architecture == "" || image.OS == "" {
		// platform unknown: cannot safely filter a multi-platform manifest.
		return &Result{ImageID: image.ID}, nil
	}

	var localDigests []string
	if policy != nil && len(policy.LocalDigests) > 0 && policy.ImageID == image.ID {
		localDigests = policy.LocalDigests
	} else {
		localDigests, err = r.resolveLocal(ctx, image)
		if err != nil {
			return nil, err
		}
	}

	remoteDigests, err := r.resolveRemote(ctx, inspect.Config.Image, image.Architecture, image.OS)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ImageID:       image.ID,
		LocalDigests:  localDigests,
		RemoteDigests: remoteDigests,
	}
	res.Available = len(remoteDigests) > 0 && !setEqual(remoteDigests, localDigests)
	if res.Available && policy != nil && setEqual(remoteDigests, policy.RemoteDigests) {
		res.Notified = true
	}
	return res, nil
}

// resolveLocal inspects the manifest behind each of the image's repo
// digests and filters to the local platform, per step 3.
func (r *Resolver) resolveLocal(ctx context.Context, image types.ImageInspect) ([]string, error) {
	var digests []string
	for _, repoDigest := range image.RepoDigests {
		manifest, err := r.client.InspectManifest(ctx, repoDigest)
		if err != nil {
			continue
		}
		digests = append(digests, filterByPlatform(manifest, image.Architecture, image.OS)...)
	}
	if len(digests) == 0 {
		// last-resort fallback: the image's own id as a singleton set.
		digests = []string{image.ID}
	}
	return dedupe(digests), nil
}

// resolveRemote inspects the remote manifest by the container's image
// spec (not digest) and applies the same platform filter, per step 4.
func (r *Resolver) resolveRemote(ctx context.Context, spec, arch, os string) ([]string, error) {
	manifest, err := r.client.InspectManifest(ctx, spec)
	if err != nil {
		return nil, err
	}
	return dedupe(filterByPlatform(manifest, arch, os)), nil
}

// filterByPlatform extracts the digest(s) matching (arch, os) from a
// manifest. A multi-platform index contributes each matching entry's
// digest; a single-platform manifest contributes its config digest (or,
// absent that, falls through to its sole entry's digest).
func filterByPlatform(manifest types.Manifest, arch, os string) []string {
	if manifest.ConfigDigest != "" {
		return []string{manifest.ConfigDigest}
	}

	var digests []string
	for _, entry := range manifest.Entries {
		if entry.Platform.Architecture == "" && entry.Platform.OS == "" {
			// single-platform manifest expressed as one entry.
			digests = append(digests, entry.Digest)
			continue
		}
		if entry.Platform.Architecture == arch && entry.Platform.OS == os {
			digests = append(digests, entry.Digest)
		}
	}
	return digests
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// setEqual reports whether a and b contain the same elements, ignoring
// order and duplicates.
func setEqual(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	sa, sb := sortedCopy(a), sortedCopy(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedCopy(in []string) []string {
	out := dedupe(in)
	sort.Strings(out)
	return out
}
