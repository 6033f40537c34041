package kamisado

import (
	"fmt"
	"strings"
)

// BoardSize is the edge length of the Kamisado board.
const BoardSize = 8

const files = "abcdefgh"

// Square is a file+rank identifier such as "a1". The transport forwards
// squares verbatim; use ParseSquare when input should be checked first.
type Square string

// ParseSquare normalizes and checks a square. Ranks start from the bottom
// of the board, rows in the board array start from the top.
func ParseSquare(s string) (Square, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	if strings.IndexByte(files, v[0]) < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	if v[1] < '1' || v[1] > '0'+BoardSize {
		return "", fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return Square(v), nil
}

// Coord returns the 0-indexed board row and column of the square.
func (sq Square) Coord() (row, col int, ok bool) {
	if len(sq) != 2 {
		return 0, 0, false
	}
	col = strings.IndexByte(files, sq[0])
	rank := int(sq[1] - '0')
	if col < 0 || rank < 1 || rank > BoardSize {
		return 0, 0, false
	}
	return BoardSize - rank, col, true
}

// SquareAt is the inverse of Coord.
func SquareAt(row, col int) (Square, bool) {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return "", false
	}
	return Square(fmt.Sprintf("%c%d", files[col], BoardSize-row)), true
}
