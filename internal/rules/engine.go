package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/swapboard/internal/board"
)

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrEmptySquare      = fmt.Errorf("%w: no piece on square", ErrInvalidSelection)
	ErrNotOwnPiece      = fmt.Errorf("%w: piece belongs to the other player", ErrInvalidSelection)
)

// Action classifies an applied move by the destination's prior occupant.
type Action uint8

const (
	ActionMove Action = iota + 1
	ActionCapture
	ActionSwap
)

func (a Action) String() string {
	switch a {
	case ActionMove:
		return "move"
	case ActionCapture:
		return "capture"
	case ActionSwap:
		return "swap"
	default:
		return "unknown"
	}
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "move":
		return ActionMove, nil
	case "capture":
		return ActionCapture, nil
	case "swap":
		return ActionSwap, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// ClassifyAction depends only on the destination's occupant relative to mover.
func ClassifyAction(b *board.Board, dest board.Coord, mover board.Color) Action {
	p, ok := b.Get(dest)
	switch {
	case !ok:
		return ActionMove
	case p.Color == mover:
		return ActionSwap
	default:
		return ActionCapture
	}
}

// LegalDestinations lists the squares the piece on from may reach, in
// row-major order. It fails when from is empty or not owned by mover.
func (rs *Ruleset) LegalDestinations(b *board.Board, from board.Coord, mover board.Color) ([]board.Coord, error) {
	piece, ok := b.Get(from)
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrEmptySquare, from)
	}
	if piece.Color != mover {
		return nil, fmt.Errorf("%w (%s)", ErrNotOwnPiece, from)
	}
	rule, ok := rs.Moves[piece.Kind]
	if !ok {
		return nil, nil
	}

	var mask [board.Size][board.Size]bool
	reach := 1
	if rule.Slide {
		reach = board.Size - 1
	}
	for _, d := range rule.Directions {
		dr := d.DR * mover.Forward()
		for i := 1; i <= reach; i++ {
			to := from.Add(dr*i, d.DC*i)
			if !to.Valid() {
				break
			}
			occ, taken := b.Get(to)
			if !taken {
				mask[to.Row][to.Col] = true
				continue
			}
			if occ.Color != mover || rule.CanSwap {
				mask[to.Row][to.Col] = true
			}
			break
		}
	}

	if rs.HomeRankSlide && from.Row == mover.HomeRow() {
		for _, dc := range []int{-1, 1} {
			for i := 1; i < board.Size; i++ {
				to := from.Add(0, dc*i)
				if !to.Valid() {
					break
				}
				occ, taken := b.Get(to)
				if !taken {
					mask[to.Row][to.Col] = true
					continue
				}
				if occ.Color == mover && rule.CanSwap {
					mask[to.Row][to.Col] = true
				}
				break
			}
		}
	}

	if rs.Sanctuary {
		home := mover.HomeRow()
		for col := 0; col < board.Size; col++ {
			if occ, taken := b.Get(board.At(home, col)); taken && occ.Color != mover {
				mask[home][col] = false
			}
		}
	}

	var out []board.Coord
	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			if mask[r][c] {
				out = append(out, board.At(r, c))
			}
		}
	}
	return out, nil
}

// IsLegal reports whether to is among the legal destinations of from.
func (rs *Ruleset) IsLegal(b *board.Board, from, to board.Coord, mover board.Color) (bool, error) {
	dests, err := rs.LegalDestinations(b, from, mover)
	if err != nil {
		return false, err
	}
	return Contains(dests, to), nil
}

func Contains(list []board.Coord, c board.Coord) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

// Apply executes from->to and returns the action plus the destination's
// prior occupant (zero Piece for an empty square). Legality must already be checked.
func Apply(b *board.Board, from, to board.Coord) (Action, board.Piece) {
	mover, ok := b.Get(from)
	if !ok {
		panic(fmt.Sprintf("rules: apply from empty square %s", from))
	}
	prior, _ := b.Get(to)
	action := ClassifyAction(b, to, mover.Color)
	switch action {
	case ActionMove:
		b.Relocate(from, to)
	case ActionCapture:
		b.Remove(to)
		b.Relocate(from, to)
	case ActionSwap:
		exchange(b, from, to)
	}
	return action, prior
}

// Revert is the exact inverse of Apply for the same arguments.
func Revert(b *board.Board, from, to board.Coord, mover, prior board.Piece, action Action) {
	if got, _ := b.Get(to); got != mover {
		panic(fmt.Sprintf("rules: revert expected %v on %s, found %v", mover, to, got))
	}
	switch action {
	case ActionMove:
		b.Relocate(to, from)
	case ActionCapture:
		b.Relocate(to, from)
		b.Place(to, prior)
	case ActionSwap:
		exchange(b, from, to)
	default:
		panic(fmt.Sprintf("rules: revert unknown action %d", action))
	}
}

func exchange(b *board.Board, x, y board.Coord) {
	px := b.Remove(x)
	py := b.Remove(y)
	b.Place(y, px)
	b.Place(x, py)
}
