// Package wire implements the framed message codec shared by the bridge
// and the executor. Each frame is a 4-byte big-endian length followed by
// a JSON payload. Framing offers no recovery point: once a malformed
// frame is seen the connection must be closed, not resynchronized.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cadbridge/internal/domain"
)

// Kind discriminates the message direction and outcome.
const (
	KindRequest  = "request"
	KindResponse = "response"
	KindError    = "error"
)

// MaxFrameSize bounds a single payload. Anything larger is treated as a
// framing error rather than an allocation request.
const MaxFrameSize = 8 << 20

// ErrMalformed reports an undecodable frame. The caller must drop the
// connection on this error.
var ErrMalformed = errors.New("malformed message")

// Message is one framed protocol message. Requests carry Tool/Params;
// responses carry Result; error replies carry Err. ID is the correlation
// id linking a reply to its request.
type Message struct {
	Kind   string         `json:"kind"`
	ID     uint64         `json:"id"`
	Tool   string         `json:"tool,omitempty"`
	Params map[string]any `json:"params,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Err    *domain.Error  `json:"error,omitempty"`
}

// NewRequest builds a request frame for a tool invocation.
func NewRequest(id uint64, tool string, params map[string]any) *Message {
	return &Message{Kind: KindRequest, ID: id, Tool: tool, Params: params}
}

// NewResponse builds a success reply for the given correlation id.
func NewResponse(id uint64, result map[string]any) *Message {
	return &Message{Kind: KindResponse, ID: id, Result: result}
}

// NewError builds a structured error reply for the given correlation id.
func NewError(id uint64, derr *domain.Error) *Message {
	return &Message{Kind: KindError, ID: id, Err: derr}
}

// Encode serializes a message into a complete frame.
func Encode(m *Message) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds frame limit", ErrMalformed, len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	return frame, nil
}

// WriteMessage encodes and writes one frame.
func WriteMessage(w io.Writer, m *Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads and decodes one frame. It returns io.EOF only when
// the stream ends cleanly on a frame boundary; a truncated header or
// payload is ErrMalformed.
func ReadMessage(r io.Reader) (*Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated length header: %v", ErrMalformed, err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: invalid frame length %d", ErrMalformed, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated payload (%d bytes expected): %v", ErrMalformed, n, err)
	}
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate enforces the shape invariants shared by both directions.
func validate(m *Message) error {
	switch m.Kind {
	case KindRequest:
		if m.Tool == "" {
			return fmt.Errorf("%w: request without tool name", ErrMalformed)
		}
	case KindResponse:
	case KindError:
		if m.Err == nil {
			return fmt.Errorf("%w: error message without error detail", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	return nil
}
