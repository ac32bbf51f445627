package domain

import (
	"encoding/json"
	"testing"
)

func TestToolCall_UnmarshalCanonical(t *testing.T) {
	var tc ToolCall
	if err := json.Unmarshal([]byte(`{"name":"extrude","arguments":{"height":5}}`), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Name != "extrude" {
		t.Fatalf("expected extrude, got %q", tc.Name)
	}
	if tc.Arguments["height"] != 5.0 {
		t.Fatalf("expected height 5, got %v", tc.Arguments["height"])
	}
}

func TestToolCall_UnmarshalAliases(t *testing.T) {
	var tc ToolCall
	if err := json.Unmarshal([]byte(`{"tool_name":"fillet","parameters":{"radius":0.5}}`), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Name != "fillet" {
		t.Fatalf("expected fillet, got %q", tc.Name)
	}
	if tc.Arguments["radius"] != 0.5 {
		t.Fatalf("expected radius 0.5, got %v", tc.Arguments["radius"])
	}
}

func TestToolCall_CanonicalWinsOverAlias(t *testing.T) {
	var tc ToolCall
	raw := `{"name":"extrude","tool_name":"fillet","arguments":{"a":1},"parameters":{"b":2}}`
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Name != "extrude" {
		t.Fatalf("expected canonical name, got %q", tc.Name)
	}
	if _, ok := tc.Arguments["a"]; !ok {
		t.Fatalf("expected canonical arguments, got %v", tc.Arguments)
	}
}

func TestError_Format(t *testing.T) {
	err := Errorf(CodeNoDocument, "extrude", "no active document")
	want := "no_document: no active document (extrude)"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	bare := Errorf(CodeRefused, "", "busy")
	if bare.Error() != "connection_refused: busy" {
		t.Fatalf("unexpected format: %q", bare.Error())
	}
}

func TestError_JSONRoundTrip(t *testing.T) {
	src := Errorf(CodeParameter, "fillet", "radius below minimum")
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Error
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Code != CodeParameter || got.Tool != "fillet" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}
