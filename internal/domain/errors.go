package domain

import "fmt"

// Code identifies a structured error class carried over the wire. The set
// is part of the protocol contract and must stay stable.
type Code string

const (
	CodeUnknownTool Code = "unknown_tool"
	CodeParameter   Code = "parameter_error"
	CodeNoDocument  Code = "no_document"
	CodeDomain      Code = "domain_error"
	CodeUnsupported Code = "unsupported"
	CodeRefused     Code = "connection_refused"
	CodeInternal    Code = "internal"
)

// Error is a structured failure reported by the executor (or synthesized
// by the bridge from an error frame). It deliberately carries no stack
// trace: the wire contract is code + message + offending tool.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Tool)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a structured error with a formatted message.
func Errorf(code Code, tool, format string, args ...any) *Error {
	return &Error{Code: code, Tool: tool, Message: fmt.Sprintf(format, args...)}
}
