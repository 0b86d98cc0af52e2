// Package template adapts text/template + sprig into the reconciliation
// engine's content.Renderer contract.
package template

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/guisu-dev/guisu/internal/content"
)

// GoTemplateRenderer implements content.Renderer using the standard
// library's text/template engine with sprig's function library added.
// The entries this engine reconciles are authored against the original
// Jinja-style engine's bare-name syntax (`{{ username }}`, not
// `{{ .username }}`), so every top-level context key is also registered
// as a zero-argument template function of the same name: a bare
// `{{ username }}` resolves as a function call, while `.username` (and
// dotted access into a nested value like `.system.os`) still resolves
// the ordinary text/template way.
type GoTemplateRenderer struct{}

var _ content.Renderer = GoTemplateRenderer{}

// Render parses source as a one-off template and executes it against
// context. Option("missingkey=error") turns an undefined dotted
// variable reference into a render error rather than silently emitting
// "<no value>"; an undefined bare-name reference fails earlier, at
// parse time, since it has no corresponding function in Funcs.
func (GoTemplateRenderer) Render(source string, context map[string]any) (string, error) {
	funcs := sprig.FuncMap()
	for name, value := range context {
		value := value
		funcs[name] = func() any { return value }
	}

	tmpl, err := template.New("entry").Funcs(funcs).Option("missingkey=error").Parse(source)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, context); err != nil {
		return "", err
	}
	return out.String(), nil
}
