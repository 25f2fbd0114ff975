package codec

import "fmt"

// Flags is the 4-bit special-move code carried by every move.
//
//	0000 normal              1000 knight promotion
//	0001 double pawn push    1001 bishop promotion
//	0010 king-side castle    1010 rook promotion
//	0011 queen-side castle   1011 queen promotion
//	0100 capture             1100-1111 promotion with capture
//	0101 en passant
//
// 0110 and 0111 are unassigned.
type Flags uint8

const (
	Normal                 Flags = 0x0
	DoublePawnPush         Flags = 0x1
	KingCastle             Flags = 0x2
	QueenCastle            Flags = 0x3
	Capture                Flags = 0x4
	EnPassant              Flags = 0x5
	KnightPromotion        Flags = 0x8
	BishopPromotion        Flags = 0x9
	RookPromotion          Flags = 0xA
	QueenPromotion         Flags = 0xB
	KnightPromotionCapture Flags = 0xC
	BishopPromotionCapture Flags = 0xD
	RookPromotionCapture   Flags = 0xE
	QueenPromotionCapture  Flags = 0xF

	// MaxFlags is the largest valid flag value.
	MaxFlags Flags = 0xF

	promotionBit Flags = 0x8
	captureBit   Flags = 0x4
)

// InvalidFlagsError reports a flag value outside [0x0,0xF].
type InvalidFlagsError struct {
	Value int
}

func (e *InvalidFlagsError) Error() string {
	return fmt.Sprintf("codec: invalid move flags %#x", e.Value)
}

// Promotion is the piece a pawn promotes to. Order matches the flag table.
type Promotion uint8

const (
	NoPromotion Promotion = iota
	PromoteKnight
	PromoteBishop
	PromoteRook
	PromoteQueen
)

func (p Promotion) String() string {
	switch p {
	case PromoteKnight:
		return "n"
	case PromoteBishop:
		return "b"
	case PromoteRook:
		return "r"
	case PromoteQueen:
		return "q"
	}
	return ""
}

// Category is the semantic move class of a flag value. Values below 8 are
// the flag value itself; the two promotion categories cover four flags each.
type Category uint8

const (
	CategoryNormal           Category = 0x0
	CategoryDoublePawnPush   Category = 0x1
	CategoryKingCastle       Category = 0x2
	CategoryQueenCastle      Category = 0x3
	CategoryCapture          Category = 0x4
	CategoryEnPassant        Category = 0x5
	CategoryReserved6        Category = 0x6
	CategoryReserved7        Category = 0x7
	CategoryPromotion        Category = 0x8
	CategoryPromotionCapture Category = 0xC
)

func (c Category) String() string {
	switch c {
	case CategoryNormal:
		return "normal"
	case CategoryDoublePawnPush:
		return "double pawn push"
	case CategoryKingCastle:
		return "king-side castle"
	case CategoryQueenCastle:
		return "queen-side castle"
	case CategoryCapture:
		return "capture"
	case CategoryEnPassant:
		return "en passant"
	case CategoryReserved6, CategoryReserved7:
		return "reserved"
	case CategoryPromotion:
		return "promotion"
	case CategoryPromotionCapture:
		return "promotion with capture"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Decoded is the classification of one flag value.
type Decoded struct {
	Flags       Flags
	Category    Category
	IsCapture   bool
	IsPromotion bool
	IsEnPassant bool
	IsCastle    bool
	Promotion   Promotion
}

// DecodeFlags classifies a raw flag value.
func DecodeFlags(value int) (Decoded, error) {
	if value < 0 || value > int(MaxFlags) {
		return Decoded{}, &InvalidFlagsError{Value: value}
	}
	f := Flags(value)
	d := Decoded{Flags: f}
	switch {
	case f&promotionBit != 0:
		d.IsPromotion = true
		d.IsCapture = f&captureBit != 0
		d.Promotion = Promotion(f&0x3) + PromoteKnight
		d.Category = CategoryPromotion
		if d.IsCapture {
			d.Category = CategoryPromotionCapture
		}
	default:
		d.Category = Category(f)
		d.IsCapture = f == Capture || f == EnPassant
		d.IsEnPassant = f == EnPassant
		d.IsCastle = f == KingCastle || f == QueenCastle
	}
	return d, nil
}

// MustDecode is DecodeFlags for values already known to be valid.
func MustDecode(f Flags) Decoded {
	d, err := DecodeFlags(int(f))
	if err != nil {
		panic(err)
	}
	return d
}

// EncodeFlags rebuilds the flag value for a category and promotion piece.
// EncodeFlags(d.Category, d.Promotion) == d.Flags for every decoded value.
func EncodeFlags(c Category, p Promotion) (Flags, error) {
	switch c {
	case CategoryPromotion, CategoryPromotionCapture:
		if p < PromoteKnight || p > PromoteQueen {
			return 0, fmt.Errorf("codec: %s needs a promotion piece", c)
		}
		return Flags(c) | Flags(p-PromoteKnight), nil
	}
	if c > CategoryReserved7 {
		return 0, &InvalidFlagsError{Value: int(c)}
	}
	if p != NoPromotion {
		return 0, fmt.Errorf("codec: %s cannot promote", c)
	}
	return Flags(c), nil
}

// Encode is the inverse of DecodeFlags.
func (d Decoded) Encode() (Flags, error) {
	return EncodeFlags(d.Category, d.Promotion)
}

// IsCapture reports whether f captures a piece.
func (f Flags) IsCapture() bool {
	return f == Capture || f == EnPassant || (f >= KnightPromotionCapture && f <= QueenPromotionCapture)
}

// IsPromotion reports whether f promotes a pawn.
func (f Flags) IsPromotion() bool {
	return f >= KnightPromotion && f <= MaxFlags
}

// WithPromotion returns the promotion flag for piece p, keeping the capture
// bit of f. Non-promotion flags are returned unchanged.
func (f Flags) WithPromotion(p Promotion) Flags {
	if !f.IsPromotion() || p < PromoteKnight || p > PromoteQueen {
		return f
	}
	return PromotionFlag(p, f&captureBit != 0)
}

// PromotionFlag returns the flag for promoting to p, with or without capture.
func PromotionFlag(p Promotion, capture bool) Flags {
	if p < PromoteKnight || p > PromoteQueen {
		return Normal
	}
	f := KnightPromotion + Flags(p-PromoteKnight)
	if capture {
		f |= captureBit
	}
	return f
}

func (f Flags) String() string {
	d, err := DecodeFlags(int(f))
	if err != nil {
		return err.Error()
	}
	if d.IsPromotion {
		return fmt.Sprintf("%s=%s", d.Category, d.Promotion)
	}
	return d.Category.String()
}
