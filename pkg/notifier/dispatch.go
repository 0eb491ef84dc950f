package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LogNotifier writes the rendered message through a logger. It is the
// only dispatcher this repo ships that doesn't need network access,
// useful standalone and in tests.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.Logger.Info().Str("title", msg.Title).Str("body", msg.Body).Msg("notification")
	return nil
}

// WebhookNotifier POSTs the rendered message as a JSON body to one URL.
// It stands in for the apprise-style multi-service dispatcher spec.md
// explicitly excludes; real fan-out to many notification URLs is the
// caller's concern (wrap several WebhookNotifiers in a MultiNotifier).
type WebhookNotifier struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (n WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	client := n.Client
	if client == nil {
		timeout := n.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans a single Notify out to every wrapped Notifier,
// continuing past individual failures and returning the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, msg Message) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
