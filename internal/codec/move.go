package codec

import "fmt"

// A packed move is the authority's native 16-bit move word:
// bits 0-5 destination, bits 6-11 source, bits 12-15 flags.
const (
	toMask    = 0x003F
	fromShift = 6
	fromMask  = 0x0FC0
	flagShift = 12
)

// PackMove encodes a move into its 16-bit word.
func PackMove(from, to int, f Flags) (uint16, error) {
	if !ValidIndex(from) {
		return 0, &RangeError{What: "index", Value: from}
	}
	if !ValidIndex(to) {
		return 0, &RangeError{What: "index", Value: to}
	}
	if f > MaxFlags {
		return 0, &InvalidFlagsError{Value: int(f)}
	}
	return uint16(to) | uint16(from)<<fromShift | uint16(f)<<flagShift, nil
}

// UnpackMove splits a 16-bit move word. Every word is a valid move.
func UnpackMove(word uint16) (from, to int, f Flags) {
	return int(word&fromMask) >> fromShift, int(word & toMask), Flags(word >> flagShift)
}

// MoveName renders from/to as coordinate notation, e.g. "e2e4" or "e7e8q".
func MoveName(from, to int, f Flags) string {
	src, err := SquareName(from)
	if err != nil {
		return fmt.Sprintf("?%d", from)
	}
	dst, err := SquareName(to)
	if err != nil {
		return fmt.Sprintf("%s?%d", src, to)
	}
	name := src + dst
	if d, err := DecodeFlags(int(f)); err == nil && d.IsPromotion {
		name += d.Promotion.String()
	}
	return name
}
