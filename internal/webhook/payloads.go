package webhook

import (
	"time"

	"github.com/headwind-sh/headwind/internal/registry"
)

// distributionEnvelope is the notification body sent by registries built
// on the distribution project (Docker Registry v2, Harbor, GitLab).
type distributionEnvelope struct {
	Events []distributionEvent `json:"events"`
}

type distributionEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Target    struct {
		MediaType  string `json:"mediaType"`
		Digest     string `json:"digest"`
		Repository string `json:"repository"`
		Tag        string `json:"tag"`
	} `json:"target"`
	Request struct {
		Host string `json:"host"`
	} `json:"request"`
}

// pushEvents returns the tagged pushes of the envelope. Pulls, deletes and
// pushes by digest only are skipped.
func (e distributionEnvelope) pushEvents(now time.Time) []registry.PushEvent {
	var out []registry.PushEvent
	for _, ev := range e.Events {
		if ev.Action != "push" || ev.Target.Repository == "" || ev.Target.Tag == "" {
			continue
		}
		host := ev.Request.Host
		if host == "" {
			host = registry.DefaultRegistry
		}
		out = append(out, registry.PushEvent{
			Registry:   host,
			Repository: ev.Target.Repository,
			Tag:        ev.Target.Tag,
			Digest:     ev.Target.Digest,
			Source:     registry.SourceWebhook,
			ReceivedAt: now,
		})
	}
	return out
}

// dockerHubPayload is the body of a Docker Hub repository webhook.
type dockerHubPayload struct {
	PushData struct {
		Tag    string `json:"tag"`
		Pusher string `json:"pusher"`
	} `json:"push_data"`
	Repository struct {
		RepoName  string `json:"repo_name"`
		Namespace string `json:"namespace"`
		Name      string `json:"name"`
	} `json:"repository"`
}

func (p dockerHubPayload) pushEvent(now time.Time) (registry.PushEvent, bool) {
	repo := p.Repository.RepoName
	if repo == "" && p.Repository.Namespace != "" && p.Repository.Name != "" {
		repo = p.Repository.Namespace + "/" + p.Repository.Name
	}
	if repo == "" || p.PushData.Tag == "" {
		return registry.PushEvent{}, false
	}
	return registry.PushEvent{
		Registry:   registry.DefaultRegistry,
		Repository: repo,
		Tag:        p.PushData.Tag,
		Source:     registry.SourceWebhook,
		ReceivedAt: now,
	}, true
}
