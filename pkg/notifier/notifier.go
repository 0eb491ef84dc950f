// Package notifier implements the Notifier Bridge (C9): it renders the
// operator-supplied title/body templates over a run's host results and
// skips dispatch entirely unless at least one item is "worthy" of
// notice, per spec §4.10.
package notifier

import (
	"bytes"
	"context"
	"text/template"

	"github.com/cuemby/tugtainer/pkg/types"
)

// Message is a rendered notification ready for dispatch.
type Message struct {
	Title string
	Body  string
}

// Notifier is the external dispatch boundary. The bridge only renders
// and decides whether to call it.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// worthyResults is the set of per-container outcomes that make a run
// worth announcing; available(notified) is deliberately excluded so a
// duplicate availability report does not re-trigger dispatch.
var worthyResults = map[types.Result]bool{
	types.ResultAvailable:  true,
	types.ResultUpdated:    true,
	types.ResultRolledBack: true,
	types.ResultFailed:     true,
}

// anyWorthy is the any_worthy template helper from spec §4.10.
func anyWorthy(items []types.ContainerResult) bool {
	for _, it := range items {
		if worthyResults[it.Result] {
			return true
		}
	}
	return false
}

// TemplateData is the value title/body templates render against.
type TemplateData struct {
	Hosts []*types.HostResult
	Items []types.ContainerResult // all items across all hosts/groups, flattened
}

// Bridge renders title/body templates and dispatches through notifier,
// skipping the call entirely when no item is worthy.
type Bridge struct {
	title    *template.Template
	body     *template.Template
	notifier Notifier
}

var funcMap = template.FuncMap{"any_worthy": anyWorthy}

// NewBridge parses the title and body templates once, up front, so a bad
// template fails at construction rather than mid-run.
func NewBridge(titleTemplate, bodyTemplate string, notifier Notifier) (*Bridge, error) {
	title, err := template.New("title").Funcs(funcMap).Parse(titleTemplate)
	if err != nil {
		return nil, err
	}
	body, err := template.New("body").Funcs(funcMap).Parse(bodyTemplate)
	if err != nil {
		return nil, err
	}
	return &Bridge{title: title, body: body, notifier: notifier}, nil
}

// Dispatch renders and sends a notification for one check_all run's host
// results, unless none of the flattened items are worthy.
func (b *Bridge) Dispatch(ctx context.Context, hosts []*types.HostResult) error {
	items := flatten(hosts)
	if !anyWorthy(items) {
		return nil
	}

	data := TemplateData{Hosts: hosts, Items: items}

	var titleBuf, bodyBuf bytes.Buffer
	if err := b.title.Execute(&titleBuf, data); err != nil {
		return err
	}
	if err := b.body.Execute(&bodyBuf, data); err != nil {
		return err
	}

	return b.notifier.Notify(ctx, Message{Title: titleBuf.String(), Body: bodyBuf.String()})
}

func flatten(hosts []*types.HostResult) []types.ContainerResult {
	var items []types.ContainerResult
	for _, h := range hosts {
		if h == nil {
			continue
		}
		for _, g := range h.Groups {
			items = append(items, g.Items...)
		}
	}
	return items
}
