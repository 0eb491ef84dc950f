package digest

import (
	"context"
	"testing"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	hostclient.HostClient
	image     types.ImageInspect
	manifests map[string]types.Manifest
}

func (f *fakeClient) InspectImage(ctx context.Context, specOrID string) (types.ImageInspect, error) {
	return f.image, nil
}

func (f *fakeClient) InspectManifest(ctx context.Context, specOrDigest string) (types.Manifest, error) {
	return f.manifests[specOrDigest], nil
}

func TestResolveLocalOnlyImageIsNotAvailable(t *testing.T) {
	c := &fakeClient{image: types.ImageInspect{ID: "img1"}}
	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{Image: "img1"}, nil)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "img1", res.ImageID)
}

func TestResolveUsesCachedLocalDigestsWhenImageIDMatches(t *testing.T) {
	c := &fakeClient{
		image: types.ImageInspect{ID: "img1", RepoDigests: []string{"repo@sha256:aaa"}, Architecture: "amd64", OS: "linux"},
		manifests: map[string]types.Manifest{
			"app:latest": {Entries: []types.ManifestDescriptor{
				{Digest: "sha256:remote", Platform: types.ManifestPlatform{Architecture: "amd64", OS: "linux"}},
			}},
		},
	}
	policy := &types.ContainerPolicy{ImageID: "img1", LocalDigests: []string{"sha256:cached"}}

	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{
		Image:  "img1",
		Config: types.ContainerConfig{Image: "app:latest"},
	}, policy)
	require.NoError(t, err)
	assert.Equal(t, []string{"sha256:cached"}, res.LocalDigests)
	assert.True(t, res.Available)
}

func TestResolveMultiPlatformFiltersByArchOS(t *testing.T) {
	c := &fakeClient{
		image: types.ImageInspect{ID: "img1", RepoDigests: []string{"repo@sha256:local"}, Architecture: "amd64", OS: "linux"},
		manifests: map[string]types.Manifest{
			"repo@sha256:local": {Entries: []types.ManifestDescriptor{
				{Digest: "sha256:amd64", Platform: types.ManifestPlatform{Architecture: "amd64", OS: "linux"}},
				{Digest: "sha256:arm64", Platform: types.ManifestPlatform{Architecture: "arm64", OS: "linux"}},
			}},
			"app:latest": {Entries: []types.ManifestDescriptor{
				{Digest: "sha256:amd64", Platform: types.ManifestPlatform{Architecture: "amd64", OS: "linux"}},
				{Digest: "sha256:arm64", Platform: types.ManifestPlatform{Architecture: "arm64", OS: "linux"}},
			}},
		},
	}

	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{
		Image:  "img1",
		Config: types.ContainerConfig{Image: "app:latest"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sha256:amd64"}, res.LocalDigests)
	assert.Equal(t, []string{"sha256:amd64"}, res.RemoteDigests)
	assert.False(t, res.Available) // local == remote
}

func TestResolveAvailableWhenRemoteDiffersFromLocal(t *testing.T) {
	c := &fakeClient{
		image: types.ImageInspect{ID: "img1", RepoDigests: []string{"repo@sha256:local"}, Architecture: "amd64", OS: "linux"},
		manifests: map[string]types.Manifest{
			"repo@sha256:local": {ConfigDigest: "sha256:old"},
			"app:latest":        {ConfigDigest: "sha256:new"},
		},
	}

	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{
		Image:  "img1",
		Config: types.ContainerConfig{Image: "app:latest"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.False(t, res.Notified)
}

func TestResolveNotifiedWhenRemoteMatchesPreviouslyStored(t *testing.T) {
	c := &fakeClient{
		image: types.ImageInspect{ID: "img1", RepoDigests: []string{"repo@sha256:local"}, Architecture: "amd64", OS: "linux"},
		manifests: map[string]types.Manifest{
			"repo@sha256:local": {ConfigDigest: "sha256:old"},
			"app:latest":        {ConfigDigest: "sha256:new"},
		},
	}
	policy := &types.ContainerPolicy{ImageID: "different", RemoteDigests: []string{"sha256:new"}}

	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{
		Image:  "img1",
		Config: types.ContainerConfig{Image: "app:latest"},
	}, policy)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.True(t, res.Notified)
}

func TestResolveFallsBackToImageIDWhenManifestHasNoDigests(t *testing.T) {
	c := &fakeClient{
		image:     types.ImageInspect{ID: "img1", RepoDigests: []string{"repo@sha256:local"}, Architecture: "amd64", OS: "linux"},
		manifests: map[string]types.Manifest{},
	}

	res, err := New(c).Resolve(context.Background(), types.ContainerInspect{
		Image:  "img1",
		Config: types.ContainerConfig{Image: "app:latest"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"img1"}, res.LocalDigests)
}
