// Package kamisado holds the value types shared by the session client:
// sides, board squares and a read-only view of the backend's state JSON.
package kamisado

import "strings"

// Side is a player role. The zero value means "let the backend pick".
type Side string

const (
	SideUnspecified Side = ""
	SideWhite       Side = "white"
	SideBlack       Side = "black"
)

// ParseSide accepts white/black and their one-letter forms. An empty
// string is SideUnspecified.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SideUnspecified, nil
	case "white", "w":
		return SideWhite, nil
	case "black", "b":
		return SideBlack, nil
	default:
		return SideUnspecified, ErrInvalidSide
	}
}

// Opposite returns the other side. SideUnspecified has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideWhite:
		return SideBlack
	case SideBlack:
		return SideWhite
	default:
		return SideUnspecified
	}
}

func (s Side) String() string {
	if s == SideUnspecified {
		return "unspecified"
	}
	return string(s)
}

// Errors
var (
	ErrInvalidSide   = errf("invalid side")
	ErrInvalidSquare = errf("invalid square")
	ErrEmptyState    = errf("empty state")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
