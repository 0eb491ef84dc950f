// Package hostregistry maintains one Host Client per enabled host,
// mirroring the teacher's pattern (pkg/manager.Manager) of owning a
// long-lived subsystem map behind a single mutex.
package hostregistry

import (
	"sync"

	"github.com/cuemby/tugtainer/pkg/hostclient"
	"github.com/cuemby/tugtainer/pkg/types"
)

// Factory builds a HostClient for a host row. Production code passes
// hostclient.NewClient wrapped to satisfy this signature; tests pass a
// fake constructor.
type Factory func(types.Host) hostclient.HostClient

// Registry is a thread-safe map from host id to HostClient.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]hostclient.HostClient
	hosts   map[string]types.Host
	factory Factory
}

// New creates an empty Registry using factory to build clients.
func New(factory Factory) *Registry {
	return &Registry{
		clients: make(map[string]hostclient.HostClient),
		hosts:   make(map[string]types.Host),
		factory: factory,
	}
}

// Put registers or replaces the client for a host. Invariant: a Host
// Client is registered iff the host row is enabled; callers must call
// Remove before Put when a host transitions disabled -> enabled with a
// changed URL or secret.
func (r *Registry) Put(host types.Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !host.Enabled {
		delete(r.clients, host.ID)
		delete(r.hosts, host.ID)
		return
	}
	r.clients[host.ID] = r.factory(host)
	r.hosts[host.ID] = host
}

// Remove deregisters a host's client (delete, disable).
func (r *Registry) Remove(hostID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, hostID)
	delete(r.hosts, hostID)
}

// Update replaces a host's client, handling the URL/secret/timeout
// change case: remove then re-instantiate, per spec.
func (r *Registry) Update(host types.Host) {
	r.Remove(host.ID)
	if host.Enabled {
		r.Put(host)
	}
}

// Get returns the client for hostID. If the host was never registered
// (e.g. the registry was rebuilt without a matching Put), Get cannot
// construct one without the host row and returns ok=false; callers that
// hold the row should call GetOrCreate instead.
func (r *Registry) Get(hostID string) (hostclient.HostClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[hostID]
	return c, ok
}

// GetOrCreate returns the cached client for host, lazily constructing
// and inserting one if missing (defensive fallback per spec's "no
// eviction policy beyond explicit removal").
func (r *Registry) GetOrCreate(host types.Host) hostclient.HostClient {
	r.mu.RLock()
	c, ok := r.clients[host.ID]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[host.ID]; ok {
		return c
	}
	c = r.factory(host)
	r.clients[host.ID] = c
	r.hosts[host.ID] = host
	return c
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
