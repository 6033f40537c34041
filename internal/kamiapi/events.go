package kamiapi

import (
	"encoding/json"
	"fmt"

	"github.com/park285/kamisado-client/internal/kamisado"
)

// Frame types sent by the backend.
const (
	TypeState    = "state"
	TypeDelta    = "delta"
	TypeAnalysis = "analysis"
	TypeTerminal = "terminal"
	TypeReady    = "ready"
)

// Envelope is the wire shape of every frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is the decoded form of a frame. Switch on the concrete type.
type Event interface {
	EventType() string
}

// StateEvent carries a full state document.
type StateEvent struct{ State GameState }

// DeltaEvent carries a state patch. The reference backend sends full
// state documents under this tag.
type DeltaEvent struct{ Patch GameState }

// AnalysisEvent is an engine suggestion. Advantage is reported from
// white's point of view and is passed through as sent.
type AnalysisEvent struct {
	BestMove            MoveRequest
	Advantage           float64
	FormattedScoreWhite string
	FormattedScoreBlack string
}

// TerminalEvent reports the end of the game.
type TerminalEvent struct{ kamisado.Outcome }

// ReadyEvent is sent once both players are subscribed.
type ReadyEvent struct{}

// UnknownEvent keeps frames with tags this client does not know.
type UnknownEvent struct {
	Type    string
	Payload json.RawMessage
}

func (StateEvent) EventType() string     { return TypeState }
func (DeltaEvent) EventType() string     { return TypeDelta }
func (AnalysisEvent) EventType() string  { return TypeAnalysis }
func (TerminalEvent) EventType() string  { return TypeTerminal }
func (ReadyEvent) EventType() string     { return TypeReady }
func (e UnknownEvent) EventType() string { return e.Type }

type analysisPayload struct {
	BestMove            MoveRequest `json:"bestMove"`
	Advantage           *float64    `json:"advantage"`
	AdvantageWhite      *float64    `json:"advantageWhite"`
	FormattedScoreWhite string      `json:"formattedScoreWhite"`
	FormattedScoreBlack string      `json:"formattedScoreBlack"`
}

// ParseEvent decodes a frame into its variant. The socket never calls
// this; it is for callers that want typed events.
func ParseEvent(msg Message) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeState:
		return StateEvent{State: GameState(env.Payload)}, nil
	case TypeDelta:
		return DeltaEvent{Patch: GameState(env.Payload)}, nil
	case TypeReady:
		return ReadyEvent{}, nil
	case TypeAnalysis:
		var p analysisPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		ev := AnalysisEvent{
			BestMove:            p.BestMove,
			FormattedScoreWhite: p.FormattedScoreWhite,
			FormattedScoreBlack: p.FormattedScoreBlack,
		}
		switch {
		case p.Advantage != nil:
			ev.Advantage = *p.Advantage
		case p.AdvantageWhite != nil:
			ev.Advantage = *p.AdvantageWhite
		}
		return ev, nil
	case TypeTerminal:
		var out kamisado.Outcome
		if err := json.Unmarshal(env.Payload, &out); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return TerminalEvent{Outcome: out}, nil
	default:
		return UnknownEvent{Type: env.Type, Payload: env.Payload}, nil
	}
}

// Outcome reports the game result carried by ev, if any. State and delta
// documents embed a terminal block as well as the dedicated terminal frame.
func Outcome(ev Event) (kamisado.Outcome, bool) {
	var raw GameState
	switch e := ev.(type) {
	case TerminalEvent:
		return e.Outcome, e.Over()
	case StateEvent:
		raw = e.State
	case DeltaEvent:
		raw = e.Patch
	default:
		return kamisado.Outcome{}, false
	}
	st, err := kamisado.DecodeState(raw)
	if err != nil {
		return kamisado.Outcome{}, false
	}
	return st.Terminal, st.Terminal.Over()
}
