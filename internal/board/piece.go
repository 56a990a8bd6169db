package board

import (
	"fmt"
	"strings"
)

// Color identifies a side. Blue moves first and owns the home rank at row 0.
type Color uint8

const (
	Blue Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "blue"
}

// Title is the capitalized name used in user-facing text.
func (c Color) Title() string {
	if c == Red {
		return "Red"
	}
	return "Blue"
}

func (c Color) Opponent() Color {
	if c == Red {
		return Blue
	}
	return Red
}

// HomeRow is the back rank a color starts on.
func (c Color) HomeRow() int {
	if c == Red {
		return Size - 1
	}
	return 0
}

// Forward is the row delta pointing toward the opponent's edge.
func (c Color) Forward() int {
	if c == Red {
		return -1
	}
	return 1
}

func (c Color) digit() byte {
	if c == Red {
		return '1'
	}
	return '0'
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseColor accepts "blue"/"red" and the log digits "0"/"1".
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue", "0":
		return Blue, nil
	case "red", "1":
		return Red, nil
	default:
		return Blue, fmt.Errorf("unknown color %q", s)
	}
}

// Kind is the closed set of piece kinds. NoKind marks an empty square.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Rook
	Bishop
	King
)

var kindNames = [...]string{"none", "pawn", "rook", "bishop", "king"}

var kindLetters = [...]byte{'n', 'p', 'r', 'b', 'k'}

// Kinds lists every real piece kind.
var Kinds = []Kind{Pawn, Rook, Bishop, King}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

func (k Kind) Letter() byte {
	if int(k) < len(kindLetters) {
		return kindLetters[k]
	}
	return '?'
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range kindNames {
		if n == s && i != int(NoKind) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown piece kind %q", s)
}

func kindFromLetter(l byte) (Kind, bool) {
	for i, v := range kindLetters {
		if v == l && i != int(NoKind) {
			return Kind(i), true
		}
	}
	return NoKind, false
}

// Piece is a kind/color pair. The zero value is "no piece".
type Piece struct {
	Kind  Kind  `json:"kind"`
	Color Color `json:"color"`
}

func (p Piece) IsZero() bool { return p.Kind == NoKind }

// NoneCode is the compact code for an empty square.
const NoneCode = "n"

// Code renders the compact kind+color code, e.g. "r0" for a Blue rook.
func (p Piece) Code() string {
	if p.IsZero() {
		return NoneCode
	}
	return string([]byte{p.Kind.Letter(), p.Color.digit()})
}

func (p Piece) String() string {
	if p.IsZero() {
		return "none"
	}
	return p.Color.String() + " " + p.Kind.String()
}

// ParseCode is the inverse of Piece.Code. "n" yields the zero Piece.
func ParseCode(s string) (Piece, error) {
	s = strings.TrimSpace(s)
	if s == NoneCode {
		return Piece{}, nil
	}
	if len(s) != 2 {
		return Piece{}, fmt.Errorf("invalid piece code %q", s)
	}
	k, ok := kindFromLetter(s[0])
	if !ok {
		return Piece{}, fmt.Errorf("invalid piece kind in %q", s)
	}
	c, err := ParseColor(s[1:])
	if err != nil {
		return Piece{}, fmt.Errorf("invalid piece color in %q", s)
	}
	return Piece{Kind: k, Color: c}, nil
}
