// Package codec maps between visual grid coordinates, linear board indices
// and the numeric move representation shared with the chess authority.
// Everything here is pure and safe for concurrent use.
package codec

import (
	"fmt"
	"strings"
)

// BoardSize is the number of rows and columns on the board.
const BoardSize = 8

// Squares is the number of addressable board indices.
const Squares = BoardSize * BoardSize

// Orientation selects how a visual (row, column) pair maps to a board index.
type Orientation uint8

const (
	// Plain is row-major from the top: index = row*8 + column.
	// Row 0 is rank 8 and column 0 is file a, so index 0 is a8.
	Plain Orientation = iota
	// Mirrored reverses the visual column order: index = row*8 + (7-column).
	Mirrored
)

func (o Orientation) String() string {
	switch o {
	case Plain:
		return "plain"
	case Mirrored:
		return "mirrored"
	}
	return fmt.Sprintf("orientation(%d)", uint8(o))
}

// ParseOrientation accepts "plain" or "mirrored" (case-insensitive).
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain":
		return Plain, nil
	case "mirrored", "mirror":
		return Mirrored, nil
	}
	return Plain, fmt.Errorf("codec: unknown orientation %q", s)
}

// RangeError reports a coordinate or index outside the board.
type RangeError struct {
	What  string
	Value int
}

func (e *RangeError) Error() string {
	max := BoardSize - 1
	if e.What == "index" {
		max = Squares - 1
	}
	return fmt.Sprintf("codec: %s %d out of range [0,%d]", e.What, e.Value, max)
}

func checkCoord(what string, v int) error {
	if v < 0 || v >= BoardSize {
		return &RangeError{What: what, Value: v}
	}
	return nil
}

// ValidIndex reports whether index addresses a square.
func ValidIndex(index int) bool {
	return index >= 0 && index < Squares
}

// ToIndex converts a visual grid position to a board index.
func ToIndex(row, column int, o Orientation) (int, error) {
	if err := checkCoord("row", row); err != nil {
		return 0, err
	}
	if err := checkCoord("column", column); err != nil {
		return 0, err
	}
	if o == Mirrored {
		column = BoardSize - 1 - column
	}
	return row*BoardSize + column, nil
}

// FromIndex is the inverse of ToIndex for the same orientation.
func FromIndex(index int, o Orientation) (row, column int, err error) {
	if !ValidIndex(index) {
		return 0, 0, &RangeError{What: "index", Value: index}
	}
	row, column = index/BoardSize, index%BoardSize
	if o == Mirrored {
		column = BoardSize - 1 - column
	}
	return row, column, nil
}

// SquareName returns the algebraic name of a board index ("a8" for 0, "h1" for 63).
func SquareName(index int) (string, error) {
	row, column, err := FromIndex(index, Plain)
	if err != nil {
		return "", err
	}
	return string([]byte{byte('a' + column), byte('8' - row)}), nil
}

// ParseSquare converts an algebraic square name into a board index.
func ParseSquare(name string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) != 2 {
		return 0, fmt.Errorf("codec: bad square %q", name)
	}
	column := int(name[0]) - 'a'
	row := '8' - int(name[1])
	if column < 0 || column >= BoardSize || row < 0 || row >= BoardSize {
		return 0, fmt.Errorf("codec: bad square %q", name)
	}
	return ToIndex(row, column, Plain)
}
