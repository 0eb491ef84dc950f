// Package containerengine is the agent-side adapter that talks to a local
// containerd socket to satisfy the Host Client contract on the server
// side: every operation pkg/hostclient can ask of an agent, containerengine
// actually performs against the embedded container engine.
//
// The shape is grounded in the teacher's pkg/runtime.ContainerdRuntime: a
// thin struct wrapping *containerd.Client plus a fixed namespace, with one
// method per operation and namespaces.WithNamespace applied at the top of
// each.
package containerengine

import (
	"context"
	"fmt"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/namespaces"

	"github.com/cuemby/tugtainer/pkg/hostclient"
)

const (
	// Namespace isolates tugtainer-managed containers from anything else
	// running on the same containerd socket.
	Namespace = "tugtainer"

	// DefaultSocketPath is the default containerd socket path.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// Engine implements hostclient.HostClient against a local containerd
// daemon. It is the agent's only collaborator with the container engine.
type Engine struct {
	client    *containerd.Client
	namespace string
}

var _ hostclient.HostClient = (*Engine)(nil)

// New connects to the containerd socket at socketPath (DefaultSocketPath
// if empty).
func New(socketPath string) (*Engine, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}
	return &Engine{client: client, namespace: Namespace}, nil
}

// Close releases the containerd client connection.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *Engine) ns(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, e.namespace)
}

// Health reports whether containerd is reachable, backing /public/health.
func (e *Engine) Health(ctx context.Context) error {
	ok, err := e.client.IsServing(e.ns(ctx))
	if err != nil {
		return fmt.Errorf("containerd health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("containerd not serving")
	}
	return nil
}

// Access is a no-op success once the process has reached the handler at
// all; the signing middleware is what actually gates access. It backs
// /public/access, which per spec.md exists only to probe signature
// verification independent of engine health.
func (e *Engine) Access(ctx context.Context) error {
	return nil
}
