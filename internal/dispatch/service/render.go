package service

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

var _ domain.Renderer = (*TextRenderer)(nil)

// TextRenderer renders template content with text/template. Parameters are addressed as
// {{.name}}; a reference to a missing parameter fails the render.
type TextRenderer struct{}

func NewRenderer() *TextRenderer { return &TextRenderer{} }

func (TextRenderer) Render(name, text string, params map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", domain.NewProviderError(domain.FailureTemplateParse, fmt.Errorf("parse template %q: %w", name, err))
	}
	if params == nil {
		params = map[string]string{}
	}
	var b strings.Builder
	if err := t.Execute(&b, params); err != nil {
		return "", domain.NewProviderError(domain.FailureTemplateIO, fmt.Errorf("render template %q: %w", name, err))
	}
	return b.String(), nil
}
