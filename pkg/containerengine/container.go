package containerengine

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/oci"

	"github.com/cuemby/tugtainer/pkg/types"
)

// defaultStopTimeout bounds the graceful-shutdown wait in StopContainer;
// the hostclient.HostClient contract carries no per-call timeout, so this
// mirrors the teacher's DeleteContainer default of 10s.
const defaultStopTimeout = 10 * time.Second

// ListContainers lists the containers in the tugtainer namespace: only
// running ones unless all is set.
func (e *Engine) ListContainers(ctx context.Context, all bool) ([]types.ContainerInspect, error) {
	ctx = e.ns(ctx)
	list, err := e.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]types.ContainerInspect, 0, len(list))
	for _, c := range list {
		inspect, err := e.inspect(ctx, c)
		if err != nil {
			continue
		}
		if !all && inspect.State.Status != "running" {
			continue
		}
		out = append(out, inspect)
	}
	return out, nil
}

// ContainerExists reports whether a container with this name/id exists.
func (e *Engine) ContainerExists(ctx context.Context, ref string) (bool, error) {
	ctx = e.ns(ctx)
	_, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// InspectContainer returns the engine's view of one container.
func (e *Engine) InspectContainer(ctx context.Context, ref string) (types.ContainerInspect, error) {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return types.ContainerInspect{}, fmt.Errorf("load container %s: %w", ref, err)
	}
	return e.inspect(ctx, c)
}

func (e *Engine) inspect(ctx context.Context, c containerd.Container) (types.ContainerInspect, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return types.ContainerInspect{}, fmt.Errorf("container info: %w", err)
	}

	cfg := types.ContainerConfig{
		Image:  info.Image,
		Labels: info.Labels,
	}

	if spec, err := c.Spec(ctx); err == nil && spec.Process != nil {
		cfg.Entrypoint = nil
		cfg.Cmd = spec.Process.Args
		cfg.WorkingDir = spec.Process.Cwd
		cfg.Env = spec.Process.Env
	}

	if raw, ok := info.Labels[labelNetworks]; ok {
		var networks []string
		if err := json.Unmarshal([]byte(raw), &networks); err == nil {
			cfg.Networks = networks
		}
	}
	if raw, ok := info.Labels[labelNetworkAliases]; ok {
		var aliases map[string][]string
		if err := json.Unmarshal([]byte(raw), &aliases); err == nil {
			cfg.NetworkAliases = aliases
		}
	}

	state := types.ContainerState{Status: "created"}
	task, err := c.Task(ctx, nil)
	if err == nil {
		status, err := task.Status(ctx)
		if err == nil {
			state.Status = string(status.Status)
		}
	}

	return types.ContainerInspect{
		ID:             c.ID(),
		Name:           c.ID(),
		Image:          info.Image,
		Config:         cfg,
		State:          state,
		HasHealthcheck: info.Labels[labelHealthcheck] == "true",
	}, nil
}

// labelHealthcheck records whether the source image carried a Docker
// HEALTHCHECK, a concept OCI/containerd has no native equivalent for.
const labelHealthcheck = "tugtainer.healthcheck"

// labelNetworks/labelNetworkAliases record a container's network
// attachments as JSON-encoded labels, since containerd (unlike the
// Docker engine API the original backend inspected) keeps no network
// list on the container object itself.
const (
	labelNetworks       = "tugtainer.networks"
	labelNetworkAliases = "tugtainer.network_aliases"
)

// CreateContainer creates (but does not start) a container from a merged
// configuration, grounded in the teacher's CreateContainer/
// CreateContainerWithMounts.
func (e *Engine) CreateContainer(ctx context.Context, body types.CreateContainerBody) (types.ContainerInspect, error) {
	ctx = e.ns(ctx)

	image, err := e.client.GetImage(ctx, body.Image)
	if err != nil {
		return types.ContainerInspect{}, fmt.Errorf("get image %s: %w", body.Image, err)
	}

	opts := []oci.SpecOpts{oci.WithImageConfig(image)}
	if len(body.Env) > 0 {
		opts = append(opts, oci.WithEnv(body.Env))
	}
	if len(body.Entrypoint) > 0 || len(body.Cmd) > 0 {
		opts = append(opts, oci.WithProcessArgs(append(append([]string{}, body.Entrypoint...), body.Cmd...)...))
	}
	if body.WorkingDir != "" {
		opts = append(opts, oci.WithProcessCwd(body.WorkingDir))
	}

	labels := make(map[string]string, len(body.Labels)+3)
	for k, v := range body.Labels {
		labels[k] = v
	}
	if hasHealthcheck(ctx, image) {
		labels[labelHealthcheck] = "true"
	}
	if len(body.Networks) > 0 {
		if raw, err := json.Marshal(body.Networks); err == nil {
			labels[labelNetworks] = string(raw)
		}
	}
	if len(body.NetworkAliases) > 0 {
		if raw, err := json.Marshal(body.NetworkAliases); err == nil {
			labels[labelNetworkAliases] = string(raw)
		}
	}

	c, err := e.client.NewContainer(
		ctx,
		body.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(body.Name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(labels),
	)
	if err != nil {
		return types.ContainerInspect{}, fmt.Errorf("create container %s: %w", body.Name, err)
	}
	return e.inspect(ctx, c)
}

// StartContainer creates and starts a task for an already-created
// container.
func (e *Engine) StartContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return fmt.Errorf("load container %s: %w", ref, err)
	}
	task, err := c.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	return nil
}

// StopContainer sends SIGTERM, waits up to defaultStopTimeout, then
// escalates to SIGKILL, deleting the task once it exits.
func (e *Engine) StopContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return fmt.Errorf("load container %s: %w", ref, err)
	}

	task, err := c.Task(ctx, nil)
	if err != nil {
		// no task: container already stopped.
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultStopTimeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("kill task (SIGTERM): %w", err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("wait task: %w", err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("kill task (SIGKILL): %w", err)
		}
		<-statusC
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// RestartContainer stops then starts the container in place.
func (e *Engine) RestartContainer(ctx context.Context, ref string) error {
	if err := e.StopContainer(ctx, ref); err != nil {
		return err
	}
	return e.StartContainer(ctx, ref)
}

// KillContainer sends SIGKILL immediately, without graceful shutdown.
func (e *Engine) KillContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return fmt.Errorf("load container %s: %w", ref, err)
	}
	task, err := c.Task(ctx, nil)
	if err != nil {
		return nil
	}
	return task.Kill(ctx, syscall.SIGKILL)
}

// PauseContainer freezes the container's task.
func (e *Engine) PauseContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return fmt.Errorf("load container %s: %w", ref, err)
	}
	task, err := c.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	return task.Pause(ctx)
}

// UnpauseContainer resumes a paused task.
func (e *Engine) UnpauseContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		return fmt.Errorf("load container %s: %w", ref, err)
	}
	task, err := c.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	return task.Resume(ctx)
}

// RemoveContainer stops (if necessary) and deletes a container and its
// snapshot.
func (e *Engine) RemoveContainer(ctx context.Context, ref string) error {
	ctx = e.ns(ctx)
	c, err := e.client.LoadContainer(ctx, ref)
	if err != nil {
		// already gone.
		return nil
	}

	if _, err := c.Task(ctx, nil); err == nil {
		if err := e.StopContainer(ctx, ref); err != nil {
			return fmt.Errorf("stop before remove: %w", err)
		}
	}

	if err := c.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("delete container %s: %w", ref, err)
	}
	return nil
}
