package script

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	texttemplate "text/template"

	"cadbridge/internal/domain"
	"cadbridge/internal/registry"
)

// Template is a reusable code-fragment pattern for one tool. The body is
// a text/template source whose slots are filled from the validated,
// normalized tool arguments (plus tool-specific derived slots). Requires
// lists the preamble identifiers that must be emitted before the body.
type Template struct {
	Tool     string
	Requires []string
	Body     string
}

// Fragment is an instantiated template: the preamble ids it depends on
// and the rendered body text. Fragments carry no shared state.
type Fragment struct {
	Preambles []string
	Body      string
}

// Library maps tool names to templates and preamble ids to their code.
// Rendering is a pure function of the inputs: the library is safe for
// concurrent use once populated.
type Library struct {
	mu        sync.RWMutex
	registry  *registry.Registry
	templates map[string]*compiledTemplate
	preambles map[string]string
	logger    *slog.Logger
}

type compiledTemplate struct {
	meta Template
	tmpl *texttemplate.Template
}

// NewLibrary returns a library preloaded with the built-in templates and
// preambles, validating calls against the given registry.
func NewLibrary(reg *registry.Registry, logger *slog.Logger) *Library {
	l := &Library{
		registry:  reg,
		templates: make(map[string]*compiledTemplate),
		preambles: make(map[string]string),
		logger:    logger,
	}
	for id, code := range builtinPreambles() {
		l.DefinePreamble(id, code)
	}
	for _, t := range builtinTemplates() {
		if err := l.Install(t); err != nil {
			panic(fmt.Sprintf("script: invalid built-in template %s: %v", t.Tool, err))
		}
	}
	return l
}

// DefinePreamble registers (or replaces) a preamble code block.
func (l *Library) DefinePreamble(id, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.preambles[id] = strings.TrimRight(code, "\n")
}

// Install parses and registers a template. Every preamble it requires
// must already be defined.
func (l *Library) Install(t Template) error {
	if t.Tool == "" {
		return fmt.Errorf("template tool name must not be empty")
	}
	tmpl, err := texttemplate.New(t.Tool).Option("missingkey=error").Parse(strings.TrimSpace(t.Body))
	if err != nil {
		return fmt.Errorf("parse template %s: %w", t.Tool, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range t.Requires {
		if _, ok := l.preambles[id]; !ok {
			return fmt.Errorf("template %s requires undefined preamble %q", t.Tool, id)
		}
	}
	l.templates[t.Tool] = &compiledTemplate{meta: t, tmpl: tmpl}
	if l.logger != nil {
		l.logger.Debug("installed template", "tool", t.Tool, "requires", t.Requires)
	}
	return nil
}

// Preamble returns the code registered under a preamble id.
func (l *Library) Preamble(id string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	code, ok := l.preambles[id]
	return code, ok
}

// Render validates a tool call and instantiates its template. It fails
// with registry.ErrUnknownTool when no template is registered for the
// name and with *registry.ParameterError on invalid arguments.
func (l *Library) Render(name string, args map[string]any) (*Fragment, error) {
	normalized, err := l.registry.Validate(domain.ToolCall{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	ct, ok := l.templates[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no template for %s", registry.ErrUnknownTool, name)
	}

	slots := deriveSlots(name, normalized)
	var sb strings.Builder
	if err := ct.tmpl.Execute(&sb, slots); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return &Fragment{
		Preambles: append([]string(nil), ct.meta.Requires...),
		Body:      sb.String(),
	}, nil
}

// deriveSlots turns normalized arguments into template slot values. All
// values are preformatted strings so substitution is deterministic.
func deriveSlots(tool string, args map[string]any) map[string]string {
	slots := make(map[string]string, len(args)+4)
	for k, v := range args {
		switch n := v.(type) {
		case float64:
			slots[k] = formatNumber(n)
		case int:
			slots[k] = strconv.Itoa(n)
		case string:
			if tool == "execute_code" && k == "code" {
				slots[k] = n // emitted verbatim, not inside quotes
			} else {
				slots[k] = escapeString(n)
			}
		default:
			slots[k] = fmt.Sprintf("%v", v)
		}
	}

	switch tool {
	case "create_sketch":
		code, v := planeCode(registry.String(args, "plane"))
		slots["plane_code"], slots["plane_var"] = code, v
	case "extrude":
		slots["operation_code"] = operationCode(registry.String(args, "operation"))
		slots["direction_code"] = directionCode(registry.String(args, "direction"), registry.Float(args, "height"))
	case "revolve":
		slots["operation_code"] = operationCode(registry.String(args, "operation"))
	case "fillet", "chamfer":
		slots["edge_loop"] = edgeLoop(registry.String(args, "edge_selection"))
	case "shell":
		slots["face_loop"] = faceLoop(registry.String(args, "face_selection"))
	case "mirror":
		code, v := planeCode(registry.String(args, "mirror_plane"))
		slots["mirror_plane_code"], slots["mirror_plane_var"] = code, v
	}
	return slots
}

// formatNumber renders a float without a spurious exponent or trailing
// zeros so compiled output is stable across runs.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// escapeString makes a value safe inside single-quoted script literals.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
