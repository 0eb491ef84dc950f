package engine

import (
	"regexp"
	"strings"

	"github.com/cuemby/tugtainer/pkg/types"
)

var validLabelKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// mergeConfig implements spec §4.7.3: given the running container's
// config and the new image's config, produce the create body for the
// recreated container. Fields the image already supplies by default are
// dropped from the running container's config rather than carried
// forward verbatim.
func mergeConfig(name, imageSpec string, current, image types.ContainerConfig) *types.CreateContainerBody {
	body := &types.CreateContainerBody{
		Name:  name,
		Image: imageSpec,
	}

	if env := diffEnv(current.Env, image.Env); len(env) > 0 {
		body.Env = env
	}

	if labels := diffLabels(current.Labels, image.Labels); len(labels) > 0 {
		body.Labels = labels
	}

	if len(image.Entrypoint) == 0 {
		body.Entrypoint = dropEmpty(current.Entrypoint)
	}
	if len(image.Cmd) == 0 {
		body.Cmd = dropEmpty(current.Cmd)
	}
	if image.WorkingDir == "" {
		body.WorkingDir = strings.TrimSpace(current.WorkingDir)
	}

	body.Networks = current.Networks
	body.NetworkAliases = current.NetworkAliases

	return body
}

// unmergedConfig builds a create body straight from a container's own
// config, with no image-default stripping. Used to reconstruct the
// original container during rollback.
func unmergedConfig(name, imageSpec string, current types.ContainerConfig) *types.CreateContainerBody {
	return &types.CreateContainerBody{
		Name:           name,
		Image:          imageSpec,
		Entrypoint:     dropEmpty(current.Entrypoint),
		Cmd:            dropEmpty(current.Cmd),
		WorkingDir:     strings.TrimSpace(current.WorkingDir),
		Env:            dropEmpty(current.Env),
		Labels:         filterLabels(current.Labels),
		Networks:       current.Networks,
		NetworkAliases: current.NetworkAliases,
	}
}

// postCreateNetworkCommands builds the post-create "network connect"
// commands for every network beyond the primary one (networks[0] is
// attached by the create call itself), mirroring the original backend's
// get_container_config: one "network connect [--alias a ...] net name"
// per secondary network, since the embedded engine's create call can
// only attach a single network atomically.
func postCreateNetworkCommands(containerName string, networks []string, aliases map[string][]string) [][]string {
	if len(networks) < 2 {
		return nil
	}

	var cmds [][]string
	for _, net := range networks[1:] {
		cmd := []string{"nerdctl", "network", "connect"}
		for _, alias := range aliases[net] {
			cmd = append(cmd, "--alias", alias)
		}
		cmd = append(cmd, net, containerName)
		cmds = append(cmds, cmd)
	}
	return cmds
}

func diffEnv(current, image []string) []string {
	imageKeys := make(map[string]struct{}, len(image))
	for _, e := range image {
		imageKeys[envKey(e)] = struct{}{}
	}
	var out []string
	for _, e := range current {
		if _, ok := imageKeys[envKey(e)]; ok {
			continue
		}
		if strings.TrimSpace(e) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func envKey(e string) string {
	if idx := strings.IndexByte(e, '='); idx >= 0 {
		return e[:idx]
	}
	return e
}

func diffLabels(current, image map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range current {
		if iv, ok := image[k]; ok && iv == v {
			continue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		if !validLabelKey.MatchString(k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func filterLabels(labels map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range labels {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if !validLabelKey.MatchString(k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func dropEmpty(in []string) []string {
	var out []string
	for _, v := range in {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
