package kamisado

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Terminal status values reported by the backend.
const (
	StatusOngoing = "ongoing"
	StatusWin     = "win"
	StatusDraw    = "draw"
)

// State is a typed view of the backend's game state document. The
// transport treats state as opaque JSON; decoding is up to the caller.
type State struct {
	TurnSide   Side                `json:"turnSide"`
	LastMove   *MoveEntry          `json:"lastMove,omitempty"`
	Moves      []MoveEntry         `json:"moves"`
	LegalMoves map[Square][]Square `json:"legalMovesMap"`
	Terminal   Outcome             `json:"terminal"`
	Board      [][]Cell            `json:"board"`
}

type MoveEntry struct {
	From     Square `json:"from"`
	To       Square `json:"to"`
	Side     Side   `json:"side,omitempty"`
	Notation string `json:"notation,omitempty"`
	TS       int64  `json:"ts,omitempty"` // unix millis
}

// Outcome is the terminal block. Winner is empty unless Status is a win.
type Outcome struct {
	Status string `json:"status"`
	Winner Side   `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Over reports whether the game has finished.
func (o Outcome) Over() bool {
	return o.Status != "" && o.Status != StatusOngoing
}

type Cell struct {
	Color string `json:"color"`
	Piece *Tower `json:"piece,omitempty"`
}

type Tower struct {
	Side  Side   `json:"side"`
	Color string `json:"color"`
}

// DecodeState parses a state document.
func DecodeState(raw []byte) (*State, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyState
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// PieceAt returns the tower standing on sq, if any.
func (s *State) PieceAt(sq Square) *Tower {
	row, col, ok := sq.Coord()
	if !ok || row >= len(s.Board) || col >= len(s.Board[row]) {
		return nil
	}
	return s.Board[row][col].Piece
}

// LegalMoveCount is the number of from->to pairs the side to move has.
func (s *State) LegalMoveCount() int {
	n := 0
	for _, to := range s.LegalMoves {
		n += len(to)
	}
	return n
}
