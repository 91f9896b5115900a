package core

import (
	"embed"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/pkg/errors"
)

var (
	ErrMissingVariable = errors.New("missing template variable")
	ErrUnknownTemplate = errors.New("unknown template")

	defaultTemplates     map[string]string
	defaultTemplatesInit sync.Once
)

//go:embed templates/*.txt
var templateFS embed.FS

// Renderer renders notification bodies from flat string contexts.
type Renderer interface {
	Render(templateID string, data map[string]string) (string, error)
}

type TemplateRenderer struct {
	templates map[string]*template.Template
}

var _ Renderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer parses sources ({id: body}). Every template fails on a missing key.
func NewTemplateRenderer(sources map[string]string) (*TemplateRenderer, error) {
	r := &TemplateRenderer{templates: make(map[string]*template.Template, len(sources))}
	for id, src := range sources {
		tmpl, err := template.New(id).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %q", id)
		}
		r.templates[id] = tmpl
	}
	return r, nil
}

func (r *TemplateRenderer) Render(templateID string, data map[string]string) (string, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", errors.Wrap(ErrUnknownTemplate, templateID)
	}
	if data == nil {
		data = map[string]string{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", errors.Wrapf(ErrMissingVariable, "%s: %v", templateID, err)
		}
		return "", errors.Wrapf(err, "rendering template %q", templateID)
	}
	return strings.TrimSpace(b.String()), nil
}

// DefaultTemplates returns the bundled notification templates, keyed by notification kind.
func DefaultTemplates() map[string]string {
	defaultTemplatesInit.Do(func() {
		defaultTemplates = make(map[string]string)
		entries, err := templateFS.ReadDir("templates")
		if err != nil {
			panic(errors.Wrap(err, "reading bundled templates"))
		}
		for _, e := range entries {
			content, err := templateFS.ReadFile(path.Join("templates", e.Name()))
			if err != nil {
				panic(errors.Wrapf(err, "reading template %s", e.Name()))
			}
			defaultTemplates[strings.TrimSuffix(e.Name(), ".txt")] = string(content)
		}
	})

	out := make(map[string]string, len(defaultTemplates))
	for k, v := range defaultTemplates {
		out[k] = v
	}
	return out
}

// MustDefaultRenderer is the renderer over DefaultTemplates.
func MustDefaultRenderer() *TemplateRenderer {
	r, err := NewTemplateRenderer(DefaultTemplates())
	if err != nil {
		panic(err)
	}
	return r
}
