package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

var defaultTemplates = map[Type]string{
	TypeUpdateRequestCreated: `{{ .Deployment.ResourceKind }} {{ .Deployment.Namespace }}/{{ .Deployment.Name }}: ` +
		`update {{ .Deployment.CurrentImage }} -> {{ .Deployment.NewImage }} awaits approval` +
		`{{ with .UpdateRequestName }} (UpdateRequest {{ . }}){{ end }}`,
	TypeUpdateCompleted: `{{ .Deployment.ResourceKind }} {{ .Deployment.Namespace }}/{{ .Deployment.Name }}: ` +
		`updated {{ .Deployment.CurrentImage }} -> {{ .Deployment.NewImage }}` +
		`{{ with .Policy }} under {{ . | lower }} policy{{ end }}`,
	TypeUpdateFailed: `{{ .Deployment.ResourceKind }} {{ .Deployment.Namespace }}/{{ .Deployment.Name }}: ` +
		`update to {{ .Deployment.NewImage }} failed{{ with .Error }}: {{ . | trunc 200 }}{{ end }}`,
}

// MessageTemplateEngine renders human readable event messages.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[Type]*template.Template
}

// NewMessageTemplateEngine creates an engine with the default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	e := &MessageTemplateEngine{templates: make(map[Type]*template.Template, len(defaultTemplates))}
	for t, text := range defaultTemplates {
		if err := e.SetTemplate(t, text); err != nil {
			panic(fmt.Sprintf("invalid default template for %s: %v", t, err))
		}
	}
	return e
}

// SetTemplate replaces the template of an event type.
func (e *MessageTemplateEngine) SetTemplate(t Type, text string) error {
	tmpl, err := template.New(string(t)).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", t, err)
	}
	e.mu.Lock()
	e.templates[t] = tmpl
	e.mu.Unlock()
	return nil
}

// Render produces the message for ev. Unknown types and template errors
// fall back to a generic message.
func (e *MessageTemplateEngine) Render(ev Event) string {
	e.mu.RLock()
	tmpl, ok := e.templates[ev.Type]
	e.mu.RUnlock()

	fallback := fmt.Sprintf("%s for %s/%s", ev.Type, ev.Deployment.Namespace, ev.Deployment.Name)
	if !ok {
		return fallback
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ev); err != nil {
		return fallback
	}
	return buf.String()
}
