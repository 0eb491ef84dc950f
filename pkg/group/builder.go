// Package group partitions a host's containers into dependency-ordered
// groups using compose labels, and assigns each container its per-run
// action from policy.
package group

import (
	"strings"

	"github.com/cuemby/tugtainer/pkg/types"
)

const (
	groupKeyDelimiter = "::"

	// SelfGroupName is the reserved group for the container running the
	// controller itself; it is never auto-updated.
	SelfGroupName = "self_container"
)

// PolicyLookup resolves the persisted policy row for one container, or
// nil if none exists yet.
type PolicyLookup func(name string) *types.ContainerPolicy

// SelfIdentity reports whether a container is the one running the
// controller. The heuristic (cgroup/hostname matching) is host-OS
// dependent per spec's open question; callers supply whatever predicate
// fits their deployment (or a config-provided container id/name).
type SelfIdentity func(types.ContainerInspect) bool

// Options configures one Build call.
type Options struct {
	Containers    []types.ContainerInspect
	Policy        PolicyLookup
	IsSelf        SelfIdentity
	ForceUpdate   string // container name targeted by a manual force-update, or ""
}

// Build partitions containers into dependency-ordered groups and assigns
// each item its action, per spec §4.4.
func Build(opts Options) []*types.Group {
	byKey := make(map[string]*types.Group)
	var order []string

	for _, inspect := range opts.Containers {
		item := newItem(inspect, opts.Policy, opts.ForceUpdate)

		var key string
		isSelf := opts.IsSelf != nil && opts.IsSelf(inspect)
		switch {
		case isSelf:
			key = SelfGroupName
		default:
			key = groupKey(inspect)
		}

		g, ok := byKey[key]
		if !ok {
			g = &types.Group{Name: key, IsSelf: isSelf}
			byKey[key] = g
			order = append(order, key)
		}
		g.Items = append(g.Items, item)
	}

	groups := make([]*types.Group, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		g.Items = topoSort(g.Items)
		groups = append(groups, g)
	}
	return groups
}

func newItem(inspect types.ContainerInspect, policy PolicyLookup, forceUpdate string) *types.GroupItem {
	item := &types.GroupItem{Inspect: inspect}

	if inspect.Protected() {
		item.Protected = true
		item.Action = types.ActionNone
		return item
	}

	var row *types.ContainerPolicy
	if policy != nil {
		row = policy(inspect.Name)
	}
	item.Policy = row

	switch {
	case row == nil || !row.CheckEnabled:
		item.Action = types.ActionNone
	case row.UpdateEnabled:
		item.Action = types.ActionUpdate
	default:
		item.Action = types.ActionCheck
	}

	if forceUpdate != "" && forceUpdate == inspect.Name && item.Action == types.ActionNone {
		item.Action = types.ActionUpdate
	}

	return item
}

// groupKey computes the compose-project group key for one container: the
// project name joined with the config-files label. If both are empty the
// container is its own singleton group.
func groupKey(inspect types.ContainerInspect) string {
	project := inspect.Config.Labels[types.LabelComposeProject]
	configFiles := inspect.Config.Labels[types.LabelComposeConfigFiles]
	if project == "" && configFiles == "" {
		return inspect.Name
	}
	return project + groupKeyDelimiter + configFiles
}

// topoSort orders items so dependencies precede dependents (DFS
// post-order over the depends_on DAG). Cycles degrade to insertion
// order rather than panicking; missing dependency services are silently
// dropped from the edge set.
func topoSort(items []*types.GroupItem) []*types.GroupItem {
	byService := make(map[string]*types.GroupItem, len(items))
	for _, it := range items {
		byService[it.ServiceName()] = it
	}

	visited := make(map[string]int) // 0=unvisited 1=in-progress 2=done
	out := make([]*types.GroupItem, 0, len(items))

	var visit func(it *types.GroupItem)
	visit = func(it *types.GroupItem) {
		name := it.ServiceName()
		switch visited[name] {
		case 2:
			return
		case 1:
			// cycle: stop descending, fall through to insertion order
			return
		}
		visited[name] = 1
		for _, dep := range dependsOn(it) {
			if depItem, ok := byService[dep]; ok {
				visit(depItem)
			}
		}
		if visited[name] != 2 {
			visited[name] = 2
			out = append(out, it)
		}
	}

	for _, it := range items {
		visit(it)
	}
	return out
}

// dependsOn parses the depends_on label: a comma-separated list whose
// entries may carry a condition after a colon (service:condition); only
// the first colon segment is the service name.
func dependsOn(it *types.GroupItem) []string {
	raw := it.Inspect.Config.Labels[types.LabelComposeDependsOn]
	if raw == "" {
		return nil
	}
	entries := strings.Split(raw, ",")
	deps := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if idx := strings.IndexByte(e, ':'); idx >= 0 {
			e = e[:idx]
		}
		deps = append(deps, e)
	}
	return deps
}
