// Package events delivers update notifications.
//
// Controllers hand an Event to the Dispatcher, which queues it and fans it
// out to every configured Sink without blocking the reconcile loop:
//
//   - WebhookSender POSTs the event as JSON, signed with HMAC-SHA256 when a
//     secret is configured.
//   - KubernetesEventSink records a core/v1 Event on the updated workload so
//     the update shows up in kubectl describe.
//   - LogSink writes the event to the process log.
//
// Human readable messages come from text/template templates with the sprig
// function library; see MessageTemplateEngine.
package events
