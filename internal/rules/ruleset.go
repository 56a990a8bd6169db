package rules

import (
	"fmt"
	"strings"

	"github.com/park285/swapboard/internal/board"
)

// Direction is a unit step expressed from Blue's point of view.
// Row deltas are mirrored for Red so "forward" always points at the opponent.
type Direction struct {
	DR int
	DC int
}

var (
	orthogonal = []Direction{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagonal   = []Direction{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	allEight   = append(append([]Direction{}, orthogonal...), diagonal...)
)

// MoveRule is the movement table entry for a piece kind.
type MoveRule struct {
	Directions []Direction
	// Slide lets the piece travel until blocked; otherwise it moves one square.
	Slide bool
	// CanSwap allows friendly-occupied destinations.
	CanSwap bool
}

// WinFunc reports whether mover has won on b right after its action.
type WinFunc func(b *board.Board, mover board.Color) bool

// Ruleset bundles the per-kind movement table with the board-wide rules.
type Ruleset struct {
	Name  string
	Moves map[board.Kind]MoveRule
	// HomeRankSlide lets a piece on its own home rank slide sideways along it.
	HomeRankSlide bool
	// Sanctuary protects opposing pieces standing on the mover's home rank.
	Sanctuary bool
	Win       WinFunc
}

const (
	NameStandard  = "standard"
	NameFrontline = "frontline"
)

// Standard is the reference ruleset: pawns step forward, rooks and bishops
// slide, kings step. A side loses when its last king is captured.
var Standard = &Ruleset{
	Name: NameStandard,
	Moves: map[board.Kind]MoveRule{
		board.Pawn:   {Directions: []Direction{{1, 0}}},
		board.Rook:   {Directions: orthogonal, Slide: true, CanSwap: true},
		board.Bishop: {Directions: diagonal, Slide: true, CanSwap: true},
		board.King:   {Directions: allEight},
	},
	Win: KingsCaptured,
}

// Frontline plays the breakthrough variant: pawns also step diagonally forward,
// home-rank pieces slide sideways, and two pieces on the enemy home rank win.
var Frontline = &Ruleset{
	Name: NameFrontline,
	Moves: map[board.Kind]MoveRule{
		board.Pawn:   {Directions: []Direction{{1, -1}, {1, 0}, {1, 1}}},
		board.Rook:   {Directions: orthogonal, Slide: true, CanSwap: true},
		board.Bishop: {Directions: diagonal, Slide: true, CanSwap: true},
		board.King:   {Directions: allEight},
	},
	HomeRankSlide: true,
	Sanctuary:     true,
	Win:           Breakthrough(2),
}

// ByName resolves a ruleset name; empty selects Standard.
func ByName(name string) (*Ruleset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameStandard:
		return Standard, nil
	case NameFrontline:
		return Frontline, nil
	default:
		return nil, fmt.Errorf("unknown ruleset %q", name)
	}
}

// KingsCaptured wins when the opponent has no king left.
func KingsCaptured(b *board.Board, mover board.Color) bool {
	return b.Count(board.King, mover.Opponent()) == 0
}

// Breakthrough wins when n of the mover's pieces stand on the opponent's home rank.
func Breakthrough(n int) WinFunc {
	return func(b *board.Board, mover board.Color) bool {
		return b.CountOnRow(mover.Opponent().HomeRow(), mover) >= n
	}
}

// Winner evaluates the win predicate for the side that just moved.
func (rs *Ruleset) Winner(b *board.Board, mover board.Color) (board.Color, bool) {
	if rs.Win != nil && rs.Win(b, mover) {
		return mover, true
	}
	return mover, false
}
