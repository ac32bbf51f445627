// Package handler maps tool names to live document operations. Each
// handler receives arguments already validated and defaulted by the
// registry, performs the operation on the document, and returns a
// result map that is serialized verbatim into the response frame.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"cadbridge/internal/domain"
	"cadbridge/internal/registry"
)

// Func executes one tool against a live document.
type Func func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error)

// Set is a tool-name to handler lookup table.
type Set struct {
	handlers map[string]Func
}

// New returns an empty handler set.
func New() *Set {
	return &Set{handlers: make(map[string]Func)}
}

// Register installs a handler, replacing any previous one for the tool.
func (s *Set) Register(tool string, fn Func) {
	s.handlers[tool] = fn
}

// Get returns the handler for a tool.
func (s *Set) Get(tool string) (Func, bool) {
	fn, ok := s.handlers[tool]
	return fn, ok
}

// NewDefault returns a set covering every built-in tool.
func NewDefault() *Set {
	s := New()

	s.Register("get_scene_info", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		return toMap(doc.SceneInfo())
	})

	s.Register("get_object_info", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		name := registry.String(args, "name")
		info, ok := doc.ObjectInfo(name)
		if !ok {
			return nil, domain.Errorf(domain.CodeDomain, "get_object_info", "object %q not found", name)
		}
		return toMap(info)
	})

	s.Register("create_sketch", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		name, err := doc.CreateSketch(registry.String(args, "plane"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"sketch_name": name, "plane": registry.String(args, "plane")}, nil
	})

	s.Register("draw_rectangle", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		name, err := doc.DrawRectangle(
			registry.Float(args, "width"), registry.Float(args, "height"),
			registry.Float(args, "origin_x"), registry.Float(args, "origin_y"), registry.Float(args, "origin_z"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"sketch_name": name, "width": registry.Float(args, "width"), "height": registry.Float(args, "height")}, nil
	})

	s.Register("draw_circle", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		name, err := doc.DrawCircle(
			registry.Float(args, "radius"),
			registry.Float(args, "center_x"), registry.Float(args, "center_y"), registry.Float(args, "center_z"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"sketch_name": name, "radius": registry.Float(args, "radius")}, nil
	})

	s.Register("draw_line", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		name, err := doc.DrawLine(
			registry.Float(args, "start_x"), registry.Float(args, "start_y"), registry.Float(args, "start_z"),
			registry.Float(args, "end_x"), registry.Float(args, "end_y"), registry.Float(args, "end_z"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"sketch_name": name}, nil
	})

	s.Register("extrude", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		body, err := doc.Extrude(
			registry.Float(args, "height"), registry.Int(args, "profile_index"),
			registry.String(args, "operation"), registry.String(args, "direction"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"body_name": body, "height": registry.Float(args, "height"), "operation": registry.String(args, "operation")}, nil
	})

	s.Register("revolve", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		body, err := doc.Revolve(
			registry.Float(args, "angle"), registry.Int(args, "profile_index"),
			registry.String(args, "operation"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"body_name": body, "angle": registry.Float(args, "angle")}, nil
	})

	s.Register("fillet", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		feature, edges, err := doc.Fillet(
			registry.Float(args, "radius"), registry.Int(args, "body_index"),
			registry.String(args, "edge_selection"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"feature_name": feature, "edges_filleted": edges}, nil
	})

	s.Register("chamfer", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		feature, edges, err := doc.Chamfer(
			registry.Float(args, "distance"), registry.Int(args, "body_index"),
			registry.String(args, "edge_selection"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"feature_name": feature, "edges_chamfered": edges}, nil
	})

	s.Register("shell", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		feature, faces, err := doc.Shell(
			registry.Float(args, "thickness"), registry.Int(args, "body_index"),
			registry.String(args, "face_selection"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"feature_name": feature, "faces_removed": faces}, nil
	})

	s.Register("mirror", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		body, err := doc.Mirror(registry.String(args, "mirror_plane"), registry.Int(args, "body_index"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"body_name": body, "mirror_plane": registry.String(args, "mirror_plane")}, nil
	})

	// Arbitrary code execution has no live counterpart: the executor does
	// not embed an interpreter. The tool still compiles to a script.
	s.Register("execute_code", func(ctx context.Context, doc domain.Document, args map[string]any) (map[string]any, error) {
		return nil, domain.Errorf(domain.CodeUnsupported, "execute_code",
			"execute_code is only available through script compilation")
	})

	return s
}

// toMap round-trips a typed result through JSON so responses use the
// same field names the wire contract documents.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return m, nil
}
