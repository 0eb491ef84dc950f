package hostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/tugtainer/pkg/engineerr"
	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/signing"
	"github.com/cuemby/tugtainer/pkg/types"
)

// Config holds the per-host configuration needed to build a Client,
// mirroring the teacher's own Config-struct-plus-NewX constructor shape.
type Config struct {
	HostID  string
	BaseURL string
	Secret  string
	Timeout time.Duration
}

// Client is the signed-HTTP implementation of HostClient.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a Client for one host.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

var _ HostClient = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	timer := metrics.NewTimer()
	op := opName(method, path)
	defer func() {
		timer.ObserveDurationVec(metrics.HostClientCallDuration, op)
	}()

	var bodyBytes []byte
	var err error
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			metrics.HostClientCallsTotal.WithLabelValues(op, "validation_error").Inc()
			return engineerr.Wrap(engineerr.KindValidationError, err)
		}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		metrics.HostClientCallsTotal.WithLabelValues(op, "internal").Inc()
		return engineerr.Wrap(engineerr.KindInternal, err)
	}
	if len(bodyBytes) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	ts := time.Now().Unix()
	req.Header.Set(signing.HeaderTimestamp, strconv.FormatInt(ts, 10))
	if c.cfg.Secret != "" {
		sig := signing.Sign(method, req.URL.Path, bodyBytes, ts, c.cfg.Secret)
		req.Header.Set(signing.HeaderSignature, sig)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.HostClientCallsTotal.WithLabelValues(op, "transport_error").Inc()
		return engineerr.Wrap(engineerr.KindTransportError, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		metrics.HostClientCallsTotal.WithLabelValues(op, "ok").Inc()
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return engineerr.Wrap(engineerr.KindInternal, err)
			}
		}
		return nil
	case http.StatusUnauthorized:
		metrics.HostClientCallsTotal.WithLabelValues(op, "unauthorized").Inc()
		return engineerr.New(engineerr.KindUnauthorized, string(respBody))
	case http.StatusNotFound:
		metrics.HostClientCallsTotal.WithLabelValues(op, "not_found").Inc()
		return engineerr.New(engineerr.KindNotFound, string(respBody))
	case http.StatusFailedDependency:
		metrics.HostClientCallsTotal.WithLabelValues(op, "engine_error").Inc()
		var detail struct {
			Detail struct {
				Stdout string `json:"stdout"`
				Stderr string `json:"stderr"`
			} `json:"detail"`
		}
		_ = json.Unmarshal(respBody, &detail)
		return &engineerr.Error{
			Kind:    engineerr.KindEngineError,
			Message: "agent reported engine error",
			Stdout:  detail.Detail.Stdout,
			Stderr:  detail.Detail.Stderr,
		}
	case http.StatusInternalServerError:
		metrics.HostClientCallsTotal.WithLabelValues(op, "timeout").Inc()
		return engineerr.New(engineerr.KindTimeout, "operation timed out")
	default:
		metrics.HostClientCallsTotal.WithLabelValues(op, "protocol_error").Inc()
		return engineerr.New(engineerr.KindEngineError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}
}

func opName(method, path string) string {
	return method + " " + path
}

func (c *Client) ListContainers(ctx context.Context, all bool) ([]types.ContainerInspect, error) {
	var out []types.ContainerInspect
	err := c.do(ctx, http.MethodPost, "/container/list", map[string]bool{"all": all}, &out)
	return out, err
}

func (c *Client) ContainerExists(ctx context.Context, ref string) (bool, error) {
	var out bool
	err := c.do(ctx, http.MethodGet, "/container/exists/"+ref, nil, &out)
	return out, err
}

func (c *Client) InspectContainer(ctx context.Context, ref string) (types.ContainerInspect, error) {
	var out types.ContainerInspect
	err := c.do(ctx, http.MethodGet, "/container/inspect/"+ref, nil, &out)
	return out, err
}

func (c *Client) CreateContainer(ctx context.Context, body types.CreateContainerBody) (types.ContainerInspect, error) {
	var out types.ContainerInspect
	err := c.do(ctx, http.MethodPost, "/container/create", body, &out)
	return out, err
}

func (c *Client) StartContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/start/"+ref, nil, nil)
}

func (c *Client) StopContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/stop/"+ref, nil, nil)
}

func (c *Client) RestartContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/restart/"+ref, nil, nil)
}

func (c *Client) KillContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/kill/"+ref, nil, nil)
}

func (c *Client) PauseContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/pause/"+ref, nil, nil)
}

func (c *Client) UnpauseContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodPost, "/container/unpause/"+ref, nil, nil)
}

func (c *Client) RemoveContainer(ctx context.Context, ref string) error {
	return c.do(ctx, http.MethodDelete, "/container/remove/"+ref, nil, nil)
}

func (c *Client) ListImages(ctx context.Context, opts types.ImageListOptions) ([]types.ImageInspect, error) {
	var out []types.ImageInspect
	err := c.do(ctx, http.MethodPost, "/image/list", opts, &out)
	return out, err
}

func (c *Client) InspectImage(ctx context.Context, specOrID string) (types.ImageInspect, error) {
	var out types.ImageInspect
	err := c.do(ctx, http.MethodGet, "/image/inspect", map[string]string{"spec_or_id": specOrID}, &out)
	return out, err
}

func (c *Client) PullImage(ctx context.Context, spec string) (types.ImageInspect, error) {
	var out types.ImageInspect
	err := c.do(ctx, http.MethodPost, "/image/pull", map[string]string{"image": spec}, &out)
	return out, err
}

func (c *Client) TagImage(ctx context.Context, specOrID, tag string) error {
	return c.do(ctx, http.MethodPost, "/image/tag", map[string]string{"spec_or_id": specOrID, "tag": tag}, nil)
}

func (c *Client) PruneImages(ctx context.Context, opts types.ImagePruneOptions) (string, error) {
	var out string
	err := c.do(ctx, http.MethodPost, "/image/prune", opts, &out)
	return out, err
}

func (c *Client) InspectManifest(ctx context.Context, specOrDigest string) (types.Manifest, error) {
	var out types.Manifest
	err := c.do(ctx, http.MethodGet, "/manifest/inspect?spec_or_digest="+specOrDigest, nil, &out)
	return out, err
}

func (c *Client) RunCommand(ctx context.Context, argv []string) (string, string, error) {
	var out [2]string
	err := c.do(ctx, http.MethodPost, "/command/run", map[string][]string{"command": argv}, &out)
	return out[0], out[1], err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/public/health", nil, nil)
}

func (c *Client) Access(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/public/access", nil, nil)
}
