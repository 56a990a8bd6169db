package board

import (
	"fmt"
	"strings"
)

// Size is the edge length of the square board.
const Size = 8

// Coord addresses a square by row and column, both in [0, Size).
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func At(row, col int) Coord { return Coord{Row: row, Col: col} }

func (c Coord) Valid() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Coord) Add(dr, dc int) Coord { return Coord{Row: c.Row + dr, Col: c.Col + dc} }

// Square renders the file-rank form: file 'a'+col, rank 8-row.
func (c Coord) Square() string {
	if !c.Valid() {
		return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
	}
	return string([]byte{byte('a' + c.Col), byte('0' + Size - c.Row)})
}

func (c Coord) String() string { return c.Square() }

// ParseSquare is the inverse of Coord.Square.
func ParseSquare(s string) (Coord, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Coord{}, fmt.Errorf("invalid square %q", s)
	}
	c := Coord{Row: Size - int(s[1]-'0'), Col: int(s[0] - 'a')}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("square %q out of range", s)
	}
	return c, nil
}

// Placement pairs a piece with the square it stands on.
type Placement struct {
	At    Coord `json:"at"`
	Piece Piece `json:"piece"`
}

// Board is the 8x8 grid. Low-level mutators panic on invariant breaches;
// callers are expected to validate moves first.
type Board struct {
	cells [Size][Size]Piece
}

// New returns an empty board.
func New() *Board { return &Board{} }

var (
	backRank  = map[int]Kind{1: Bishop, 6: Bishop, 2: Rook, 5: Rook}
	frontRank = map[int]Kind{0: Pawn, 1: Pawn, 2: King, 3: Pawn, 4: Pawn, 5: King, 6: Pawn, 7: Pawn}
)

// NewInitial returns the starting layout, mirrored across the midline.
func NewInitial() *Board {
	b := New()
	for _, color := range []Color{Blue, Red} {
		home := color.HomeRow()
		front := home + color.Forward()
		for col, k := range backRank {
			b.cells[home][col] = Piece{Kind: k, Color: color}
		}
		for col, k := range frontRank {
			b.cells[front][col] = Piece{Kind: k, Color: color}
		}
	}
	return b
}

// Get returns the occupant of c, if any. Off-board squares are empty.
func (b *Board) Get(c Coord) (Piece, bool) {
	if !c.Valid() {
		return Piece{}, false
	}
	p := b.cells[c.Row][c.Col]
	return p, !p.IsZero()
}

// Place puts p on an empty square.
func (b *Board) Place(c Coord, p Piece) {
	if !c.Valid() {
		panic(fmt.Sprintf("board: place off board at %v", c))
	}
	if p.IsZero() {
		panic(fmt.Sprintf("board: place empty piece at %s", c))
	}
	if !b.cells[c.Row][c.Col].IsZero() {
		panic(fmt.Sprintf("board: place on occupied square %s", c))
	}
	b.cells[c.Row][c.Col] = p
}

// Remove clears an occupied square and returns what stood there.
func (b *Board) Remove(c Coord) Piece {
	p, ok := b.Get(c)
	if !ok {
		panic(fmt.Sprintf("board: remove from empty square %s", c))
	}
	b.cells[c.Row][c.Col] = Piece{}
	return p
}

// Relocate moves the piece on from to the empty square to.
func (b *Board) Relocate(from, to Coord) {
	b.Place(to, b.Remove(from))
}

func (b *Board) Clone() *Board {
	cp := *b
	return &cp
}

func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.cells == o.cells
}

// Count returns how many pieces of kind k and color c are on the board.
func (b *Board) Count(k Kind, c Color) int {
	n := 0
	for r := range b.cells {
		for _, p := range b.cells[r] {
			if p.Kind == k && p.Color == c {
				n++
			}
		}
	}
	return n
}

// CountOnRow returns how many pieces of color c stand on row.
func (b *Board) CountOnRow(row int, c Color) int {
	if row < 0 || row >= Size {
		return 0
	}
	n := 0
	for _, p := range b.cells[row] {
		if !p.IsZero() && p.Color == c {
			n++
		}
	}
	return n
}

// Pieces lists every occupied square in row-major order.
func (b *Board) Pieces() []Placement {
	out := make([]Placement, 0, 32)
	for r := range b.cells {
		for col, p := range b.cells[r] {
			if !p.IsZero() {
				out = append(out, Placement{At: At(r, col), Piece: p})
			}
		}
	}
	return out
}

// Grid returns piece codes row by row ("n" for empty squares).
func (b *Board) Grid() [][]string {
	out := make([][]string, Size)
	for r := range b.cells {
		row := make([]string, Size)
		for col, p := range b.cells[r] {
			row[col] = p.Code()
		}
		out[r] = row
	}
	return out
}

func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("   a  b  c  d  e  f  g  h\n")
	for r := 0; r < Size; r++ {
		fmt.Fprintf(&sb, "%d ", Size-r)
		for col := 0; col < Size; col++ {
			p := b.cells[r][col]
			if p.IsZero() {
				sb.WriteString(" ..")
			} else {
				sb.WriteString(" " + p.Code())
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
