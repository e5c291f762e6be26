package registry

import (
	"strings"
	"time"
)

// Source identifies where a push signal came from.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePolling Source = "polling"
)

// PushEvent announces that repository:tag is available.
type PushEvent struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
	Source     Source
	ReceivedAt time.Time
}

// FullImage renders the event as an image reference. The registry is left
// out when it is empty or docker.io, matching how such images are usually
// written in pod specs.
func (e PushEvent) FullImage() string {
	return e.Image() + ":" + e.Tag
}

// Image returns the repository including any non-default registry.
func (e PushEvent) Image() string {
	if e.Registry == "" || e.Registry == DefaultRegistry || strings.HasPrefix(e.Repository, e.Registry+"/") {
		return e.Repository
	}
	return e.Registry + "/" + e.Repository
}
