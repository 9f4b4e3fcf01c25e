// Package realtime carries the conversation change-feed: the wire protocol,
// the server-side fanout hub and WebSocket gateway, and the client-side Feed.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHelloAck opens a subscription (server -> client). Its payload
	// carries the session id assigned to the connection.
	TypeHelloAck = "hello_ack"

	// TypeChange broadcasts one message-row change (server -> client).
	TypeChange = "change"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// EventKind classifies a row change.
type EventKind string

const (
	KindInsert EventKind = "insert"
	KindUpdate EventKind = "update"
	KindDelete EventKind = "delete"
)

// Valid reports whether the kind is one of the three known kinds.
func (k EventKind) Valid() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// ChangeEvent is one row-level change carried by the feed.
// The payload is always the full message row; delete events carry the row
// as it was before removal.
type ChangeEvent struct {
	Kind    EventKind    `json:"kind"`
	Message chat.Message `json:"message"`
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	switch e.Type {
	case TypeHelloAck, TypeChange, TypeError:
		return nil
	case "":
		return errors.New("missing field: type")
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// HelloAckPayload carries the session id assigned by the gateway.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewChangeEnvelope wraps a ChangeEvent into a wire envelope.
func NewChangeEnvelope(ev ChangeEvent, now time.Time) (Envelope, error) {
	if !ev.Kind.Valid() {
		return Envelope{}, fmt.Errorf("invalid event kind: %q", ev.Kind)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	id, err := NewEnvelopeID(now)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		V:       Version,
		Type:    TypeChange,
		ID:      id,
		TS:      now.UTC(),
		Payload: payload,
	}, nil
}

// DecodeChange extracts the ChangeEvent from a TypeChange envelope.
func DecodeChange(env Envelope) (ChangeEvent, error) {
	if env.Type != TypeChange {
		return ChangeEvent{}, fmt.Errorf("not a change envelope: %q", env.Type)
	}
	var ev ChangeEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ChangeEvent{}, err
	}
	if !ev.Kind.Valid() {
		return ChangeEvent{}, fmt.Errorf("invalid event kind: %q", ev.Kind)
	}
	if ev.Message.ID == "" {
		return ChangeEvent{}, errors.New("change event without message id")
	}
	return ev, nil
}
