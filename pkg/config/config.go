// Package config loads the controller's settings: a YAML manifest in the
// shape the teacher's `warren apply` resource files use (read the file,
// gopkg.in/yaml.v3 unmarshal into a tagged struct), then layers
// environment variable overrides on top so the same settings can be
// driven entirely from a container's env block without a mounted file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/tugtainer/pkg/types"
)

// HostSettings is one entry of the `hosts` list in the settings file,
// mirroring types.Host's persisted shape minus the fields the store
// derives at runtime (Enabled, which ToHost always sets to true).
type HostSettings struct {
	ID                 string        `yaml:"id"`
	Name               string        `yaml:"name"`
	URL                string        `yaml:"url"`
	Secret             string        `yaml:"secret,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty"`
	ContainerHCTimeout time.Duration `yaml:"container_hc_timeout,omitempty"`
	Prune              bool          `yaml:"prune,omitempty"`
	PruneAll           bool          `yaml:"prune_all,omitempty"`
}

// Settings is the controller's settings file: the one YAML document
// read at startup, expressible either as a file on disk or an
// environment-variable-only deployment (Load still works against an
// empty/missing file as long as the env overrides supply everything).
type Settings struct {
	CrontabExpr               string         `yaml:"crontab_expr"`
	Timezone                  string         `yaml:"timezone"`
	NotificationURLs          []string       `yaml:"notification_urls,omitempty"`
	NotificationTitleTemplate string         `yaml:"notification_title_template,omitempty"`
	NotificationBodyTemplate  string         `yaml:"notification_body_template,omitempty"`
	UpdateOnlyRunning         bool           `yaml:"update_only_running"`
	Hosts                     []HostSettings `yaml:"hosts,omitempty"`
}

// Defaults mirror the teacher's preference for an always-valid zero
// value: a Settings loaded from an empty file still schedules a daily
// check and never panics on a template that was never set.
func Defaults() Settings {
	return Settings{
		CrontabExpr:               "@midnight",
		Timezone:                  "UTC",
		NotificationTitleTemplate: "tugtainer: {{len .Hosts}} hosts, {{len .Items}} updates",
		NotificationBodyTemplate:  "{{range .Items}}{{.}}\n{{end}}",
		UpdateOnlyRunning:         true,
	}
}

// Load reads path (if non-empty and present) into a Settings seeded
// with Defaults(), then applies environment variable overrides. A
// missing path is not an error: env-only deployments pass "".
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// env-only deployment; fall through to overrides.
		default:
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnvOverrides(&s)

	if s.CrontabExpr == "" {
		return Settings{}, fmt.Errorf("config: crontab_expr must not be empty")
	}
	return s, nil
}

func applyEnvOverrides(s *Settings) {
	if v, ok := os.LookupEnv("CRONTAB_EXPR"); ok {
		s.CrontabExpr = v
	}
	if v, ok := os.LookupEnv("TIMEZONE"); ok {
		s.Timezone = v
	}
	if v, ok := os.LookupEnv("NOTIFICATION_URLS"); ok {
		s.NotificationURLs = splitNonEmpty(v)
	}
	if v, ok := os.LookupEnv("NOTIFICATION_TITLE_TEMPLATE"); ok {
		s.NotificationTitleTemplate = v
	}
	if v, ok := os.LookupEnv("NOTIFICATION_BODY_TEMPLATE"); ok {
		s.NotificationBodyTemplate = v
	}
	if v, ok := os.LookupEnv("UPDATE_ONLY_RUNNING"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.UpdateOnlyRunning = b
		}
	}
}

// splitNonEmpty splits a comma-separated env value, dropping blank
// entries left by trailing/doubled commas.
func splitNonEmpty(v string) []string {
	var out []string
	for _, seg := range strings.Split(v, ",") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ToHost converts one settings-file host entry into the persisted
// types.Host row with Enabled set to true: the settings file has no
// field that disables a host.
func (h HostSettings) ToHost() types.Host {
	return types.Host{
		ID:                 h.ID,
		Name:               h.Name,
		Enabled:            true,
		URL:                h.URL,
		Secret:             h.Secret,
		Timeout:            h.Timeout,
		ContainerHCTimeout: h.ContainerHCTimeout,
		Prune:              h.Prune,
		PruneAll:           h.PruneAll,
	}
}
