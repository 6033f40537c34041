package kamisado

import (
	"errors"
	"testing"
)

func TestParseSide(t *testing.T) {
	cases := map[string]Side{"": SideUnspecified, "white": SideWhite, "W": SideWhite, " black ": SideBlack, "b": SideBlack}
	for in, want := range cases {
		got, err := ParseSide(in)
		if err != nil {
			t.Fatalf("ParseSide(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseSide(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseSide("red"); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("expected ErrInvalidSide, got %v", err)
	}
	if SideWhite.Opposite() != SideBlack || SideUnspecified.Opposite() != SideUnspecified {
		t.Fatalf("unexpected Opposite")
	}
}

func TestParseSquare(t *testing.T) {
	sq, err := ParseSquare(" A1 ")
	if err != nil || sq != "a1" {
		t.Fatalf("ParseSquare: %q %v", sq, err)
	}
	for _, bad := range []string{"", "a", "a9", "i1", "a0", "11", "a10"} {
		if _, err := ParseSquare(bad); !errors.Is(err, ErrInvalidSquare) {
			t.Fatalf("ParseSquare(%q): expected ErrInvalidSquare, got %v", bad, err)
		}
	}
}

func TestSquareCoordRoundTrip(t *testing.T) {
	row, col, ok := Square("a1").Coord()
	if !ok || row != 7 || col != 0 {
		t.Fatalf("a1 -> (%d,%d,%v)", row, col, ok)
	}
	row, col, ok = Square("h8").Coord()
	if !ok || row != 0 || col != 7 {
		t.Fatalf("h8 -> (%d,%d,%v)", row, col, ok)
	}
	sq, ok := SquareAt(7, 0)
	if !ok || sq != "a1" {
		t.Fatalf("SquareAt(7,0) = %q", sq)
	}
	if _, ok := SquareAt(8, 0); ok {
		t.Fatalf("expected out of range")
	}
}

func TestDecodeState(t *testing.T) {
	raw := []byte(`{
		"turnSide":"black",
		"lastMove":{"from":"a1","to":"a2","side":"white","notation":"a1-a2","ts":1700000000000},
		"moves":[{"from":"a1","to":"a2","side":"white","notation":"a1-a2","ts":1700000000000}],
		"legalMovesMap":{"b8":["b7","b6"],"c8":["c7"]},
		"terminal":{"status":"ongoing"},
		"board":[[{"color":"orange","piece":{"side":"black","color":"orange"}}]]
	}`)
	st, err := DecodeState(raw)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if st.TurnSide != SideBlack || st.LastMove == nil || st.LastMove.Notation != "a1-a2" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Terminal.Over() {
		t.Fatalf("ongoing game reported as over")
	}
	if st.LegalMoveCount() != 3 {
		t.Fatalf("legal moves = %d", st.LegalMoveCount())
	}
	if p := st.PieceAt("a8"); p == nil || p.Side != SideBlack {
		t.Fatalf("PieceAt(a8) = %+v", p)
	}
	if p := st.PieceAt("h1"); p != nil {
		t.Fatalf("expected no piece outside decoded board, got %+v", p)
	}

	if _, err := DecodeState([]byte("  ")); !errors.Is(err, ErrEmptyState) {
		t.Fatalf("expected ErrEmptyState, got %v", err)
	}
	won := Outcome{Status: StatusWin, Winner: SideWhite}
	if !won.Over() {
		t.Fatalf("win not reported as over")
	}
}
