package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"cadbridge/internal/domain"
)

// ErrUnknownTool is returned when a call names a tool nobody registered.
var ErrUnknownTool = errors.New("unknown tool")

// ParameterError reports an invalid or missing argument for a tool call.
// It carries the tool and parameter names so the caller can correct the
// call without guessing.
type ParameterError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("tool %s: parameter %s: %s", e.Tool, e.Param, e.Reason)
}

// ParamType is the wire-level kind of a tool parameter.
type ParamType string

const (
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
)

// Param declares a single parameter of a tool schema.
type Param struct {
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Enum        []string // string params only
	Minimum     *float64
	Maximum     *float64
}

// Tool is a declarative tool definition: name plus parameter schema.
// Schemas are validated once at registration, not on every call.
type Tool struct {
	Name        string
	Title       string
	Description string
	Params      map[string]Param
}

// Registry holds the declared tool schemas and validates calls against
// them. Both the script compiler and the remote bridge consult the same
// registry, so the two execution paths see identical parameters.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// NewDefault returns a registry preloaded with the built-in CAD tools.
func NewDefault(logger *slog.Logger) *Registry {
	r := New(logger)
	for _, t := range builtinTools() {
		if err := r.Register(t); err != nil {
			// Built-in schemas are fixed at compile time; a bad one is a bug.
			panic(fmt.Sprintf("registry: invalid built-in tool %s: %v", t.Name, err))
		}
	}
	return r
}

// Register validates and installs a tool schema. Re-registering a name
// replaces the previous definition.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	for name, p := range t.Params {
		switch p.Type {
		case TypeNumber, TypeInteger, TypeString:
		default:
			return fmt.Errorf("tool %s: parameter %s: unsupported type %q", t.Name, name, p.Type)
		}
		if len(p.Enum) > 0 && p.Type != TypeString {
			return fmt.Errorf("tool %s: parameter %s: enum requires string type", t.Name, name)
		}
		if p.Default != nil {
			if _, err := coerce(t.Name, name, p, p.Default); err != nil {
				return fmt.Errorf("tool %s: parameter %s: invalid default: %w", t.Name, name, err)
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	if r.logger != nil {
		r.logger.Debug("registered tool", "name", t.Name)
	}
	return nil
}

// Get returns the schema for a tool name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns JSON-Schema style definitions for the agent-facing
// layer, sorted by tool name for stable output.
func (r *Registry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	defs := make([]domain.ToolDefinition, 0, len(names))
	for _, n := range names {
		t := r.tools[n]
		defs = append(defs, domain.ToolDefinition{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			Parameters:  schemaFor(t),
		})
	}
	return defs
}

func schemaFor(t *Tool) map[string]any {
	props := make(map[string]any, len(t.Params))
	var required []string
	for name, p := range t.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Validate checks a tool call against its schema and returns a normalized
// argument map: defaults applied, numbers coerced, integers as int. The
// input call is never mutated. Invalid calls fail with ErrUnknownTool or
// *ParameterError and must not reach the compiler or the wire.
func (r *Registry) Validate(call domain.ToolCall) (map[string]any, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	out := make(map[string]any, len(t.Params))
	for name, p := range t.Params {
		raw, present := call.Arguments[name]
		if !present {
			if p.Required {
				return nil, &ParameterError{Tool: t.Name, Param: name, Reason: "required parameter missing"}
			}
			if p.Default != nil {
				v, _ := coerce(t.Name, name, p, p.Default)
				out[name] = v
			}
			continue
		}
		v, err := coerce(t.Name, name, p, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	// Unknown arguments are rejected rather than silently dropped so a
	// misspelled optional parameter does not pass validation.
	for name := range call.Arguments {
		if _, ok := t.Params[name]; !ok {
			return nil, &ParameterError{Tool: t.Name, Param: name, Reason: "unknown parameter"}
		}
	}
	return out, nil
}

// coerce converts a raw argument to the declared type and checks bounds.
func coerce(tool, name string, p Param, raw any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("expected string, got %T", raw)}
		}
		if len(p.Enum) > 0 {
			for _, e := range p.Enum {
				if s == e {
					return s, nil
				}
			}
			return nil, &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("value %q not in %v", s, p.Enum)}
		}
		return s, nil

	case TypeNumber:
		f, ok := toFloat(raw)
		if !ok {
			return nil, &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("expected number, got %T", raw)}
		}
		if err := checkBounds(tool, name, p, f); err != nil {
			return nil, err
		}
		return f, nil

	case TypeInteger:
		f, ok := toFloat(raw)
		if !ok || f != math.Trunc(f) {
			return nil, &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("expected integer, got %v", raw)}
		}
		if err := checkBounds(tool, name, p, f); err != nil {
			return nil, err
		}
		return int(f), nil
	}
	return nil, &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("unsupported type %q", p.Type)}
}

func checkBounds(tool, name string, p Param, f float64) error {
	if p.Minimum != nil && f < *p.Minimum {
		return &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("value %v below minimum %v", f, *p.Minimum)}
	}
	if p.Maximum != nil && f > *p.Maximum {
		return &ParameterError{Tool: tool, Param: name, Reason: fmt.Sprintf("value %v above maximum %v", f, *p.Maximum)}
	}
	return nil
}

// toFloat accepts the numeric representations that JSON decoding and Go
// literals produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
