// Package webhook receives registry push notifications over HTTP and hands
// each tagged push to a Handler as a registry.PushEvent.
//
// Two payload formats are understood: the notification envelope of
// distribution based registries on POST /webhook, and Docker Hub's
// repository webhook on POST /webhook/dockerhub. The server also exposes
// GET /healthz and the Prometheus metrics on GET /metrics.
package webhook
