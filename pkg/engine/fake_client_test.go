package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/tugtainer/pkg/types"
)

// fakeClient is an in-memory HostClient double the engine tests drive
// directly; it tracks call order so tests can assert on sequencing
// (stop before create, start-all recovery, etc).
type fakeClient struct {
	containers map[string]types.ContainerInspect
	images     map[string]types.ImageInspect
	manifests  map[string]types.Manifest

	calls       []string
	runCommands [][]string

	failPull       map[string]bool
	failStop       map[string]bool
	failCreate     map[string]bool
	failCreateOnce map[string]bool // fails the next create for this name, then clears itself
	failHealthwait map[string]bool
	failRunCommand bool
	pruneOutput    string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		containers:     make(map[string]types.ContainerInspect),
		images:         make(map[string]types.ImageInspect),
		manifests:      make(map[string]types.Manifest),
		failPull:       make(map[string]bool),
		failStop:       make(map[string]bool),
		failCreate:     make(map[string]bool),
		failCreateOnce: make(map[string]bool),
		failHealthwait: make(map[string]bool),
	}
}

func (f *fakeClient) record(s string) { f.calls = append(f.calls, s) }

func (f *fakeClient) ListContainers(ctx context.Context, all bool) ([]types.ContainerInspect, error) {
	var out []types.ContainerInspect
	for _, c := range f.containers {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClient) ContainerExists(ctx context.Context, ref string) (bool, error) {
	_, ok := f.containers[ref]
	return ok, nil
}

func (f *fakeClient) InspectContainer(ctx context.Context, ref string) (types.ContainerInspect, error) {
	c, ok := f.containers[ref]
	if !ok {
		return types.ContainerInspect{}, fmt.Errorf("not found: %s", ref)
	}
	if f.failHealthwait[ref] {
		c.State.Health = "unhealthy"
	} else if c.HasHealthcheck {
		c.State.Health = "healthy"
	}
	return c, nil
}

func (f *fakeClient) CreateContainer(ctx context.Context, body types.CreateContainerBody) (types.ContainerInspect, error) {
	f.record("create:" + body.Name)
	if f.failCreate[body.Name] {
		return types.ContainerInspect{}, fmt.Errorf("create failed: %s", body.Name)
	}
	if f.failCreateOnce[body.Name] {
		f.failCreateOnce[body.Name] = false
		return types.ContainerInspect{}, fmt.Errorf("create failed: %s", body.Name)
	}
	existing := f.containers[body.Name]
	c := types.ContainerInspect{
		ID:    existing.ID,
		Name:  body.Name,
		Image: existing.Image,
		Config: types.ContainerConfig{
			Image:          body.Image,
			Entrypoint:     body.Entrypoint,
			Cmd:            body.Cmd,
			WorkingDir:     body.WorkingDir,
			Env:            body.Env,
			Labels:         body.Labels,
			Networks:       body.Networks,
			NetworkAliases: body.NetworkAliases,
		},
		State:          types.ContainerState{Status: "created"},
		HasHealthcheck: existing.HasHealthcheck,
	}
	f.containers[body.Name] = c
	return c, nil
}

func (f *fakeClient) StartContainer(ctx context.Context, ref string) error {
	f.record("start:" + ref)
	c, ok := f.containers[ref]
	if !ok {
		return fmt.Errorf("not found: %s", ref)
	}
	c.State.Status = "running"
	f.containers[ref] = c
	return nil
}

func (f *fakeClient) StopContainer(ctx context.Context, ref string) error {
	f.record("stop:" + ref)
	if f.failStop[ref] {
		return fmt.Errorf("stop failed: %s", ref)
	}
	c, ok := f.containers[ref]
	if !ok {
		return fmt.Errorf("not found: %s", ref)
	}
	c.State.Status = "exited"
	f.containers[ref] = c
	return nil
}

func (f *fakeClient) RestartContainer(ctx context.Context, ref string) error { return nil }
func (f *fakeClient) KillContainer(ctx context.Context, ref string) error    { return nil }
func (f *fakeClient) PauseContainer(ctx context.Context, ref string) error   { return nil }
func (f *fakeClient) UnpauseContainer(ctx context.Context, ref string) error { return nil }

func (f *fakeClient) RemoveContainer(ctx context.Context, ref string) error {
	f.record("remove:" + ref)
	delete(f.containers, ref)
	return nil
}

func (f *fakeClient) ListImages(ctx context.Context, opts types.ImageListOptions) ([]types.ImageInspect, error) {
	return nil, nil
}

func (f *fakeClient) InspectImage(ctx context.Context, specOrID string) (types.ImageInspect, error) {
	img, ok := f.images[specOrID]
	if !ok {
		return types.ImageInspect{ID: specOrID}, nil
	}
	return img, nil
}

func (f *fakeClient) PullImage(ctx context.Context, spec string) (types.ImageInspect, error) {
	f.record("pull:" + spec)
	if f.failPull[spec] {
		return types.ImageInspect{}, fmt.Errorf("pull failed: %s", spec)
	}
	img, ok := f.images[spec]
	if !ok {
		img = types.ImageInspect{ID: spec}
	}
	return img, nil
}

func (f *fakeClient) TagImage(ctx context.Context, specOrID, tag string) error {
	f.record("tag:" + specOrID + "->" + tag)
	return nil
}

func (f *fakeClient) PruneImages(ctx context.Context, opts types.ImagePruneOptions) (string, error) {
	return f.pruneOutput, nil
}

func (f *fakeClient) InspectManifest(ctx context.Context, specOrDigest string) (types.Manifest, error) {
	return f.manifests[specOrDigest], nil
}

func (f *fakeClient) RunCommand(ctx context.Context, argv []string) (string, string, error) {
	f.record("run:" + strings.Join(argv, " "))
	f.runCommands = append(f.runCommands, argv)
	if f.failRunCommand {
		return "", "boom", fmt.Errorf("command failed: %v", argv)
	}
	return "", "", nil
}

func (f *fakeClient) Health(ctx context.Context) error { return nil }
func (f *fakeClient) Access(ctx context.Context) error { return nil }
