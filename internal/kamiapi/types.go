package kamiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/park285/kamisado-client/internal/kamisado"
)

// DefaultBaseURL is the backend origin used when none is configured.
const DefaultBaseURL = "http://localhost:8081"

// SessionID identifies a backend session. The backend emits it as a JSON
// number; the client carries it as an opaque string.
type SessionID string

func (id *SessionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("session id: %w", err)
		}
		*id = SessionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

// SessionDescriptor is the backend's reply to session creation.
type SessionDescriptor struct {
	SessionID       SessionID `json:"sessionId"`
	AnalysisEnabled bool      `json:"analysisEnabled"`

	// Raw is the response body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// JoinResult carries the bearer token for the joined side.
type JoinResult struct {
	Token           string        `json:"token"`
	Side            kamisado.Side `json:"side"`
	AnalysisEnabled bool          `json:"analysisEnabled,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// GameState is the backend's state document, passed through untouched.
// kamisado.DecodeState gives a typed view.
type GameState = json.RawMessage

// Message is one inbound socket frame that parsed as JSON.
type Message = json.RawMessage

// MoveRequest is the body of a move submission.
type MoveRequest struct {
	From kamisado.Square `json:"from"`
	To   kamisado.Square `json:"to"`
}

type createSessionRequest struct {
	AnalysisEnabled bool `json:"analysisEnabled"`
}

type joinRequest struct {
	Side kamisado.Side `json:"side"`
}

// Transport is the request/response half of the session API.
type Transport interface {
	CreateSession(ctx context.Context, analysisEnabled bool) (*SessionDescriptor, error)
	JoinSession(ctx context.Context, sessionID SessionID, side kamisado.Side) (*JoinResult, error)
	FetchState(ctx context.Context, sessionID SessionID, token string) (GameState, error)
	SendMove(ctx context.Context, sessionID SessionID, token string, from, to kamisado.Square) (GameState, error)
}

var _ Transport = (*Client)(nil)
