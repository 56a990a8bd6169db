package boardpresenter

import (
	"fmt"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

func ToPosition(c board.Coord) boarddto.Position {
	return boarddto.Position{Row: c.Row, Col: c.Col}
}

func ToPositions(list []board.Coord) []boarddto.Position {
	out := make([]boarddto.Position, 0, len(list))
	for _, c := range list {
		out = append(out, ToPosition(c))
	}
	return out
}

// FromPosition validates a transport coordinate.
func FromPosition(p boarddto.Position) (board.Coord, error) {
	c := board.At(p.Row, p.Col)
	if !c.Valid() {
		return board.Coord{}, fmt.Errorf("position (%d,%d) is off the board", p.Row, p.Col)
	}
	return c, nil
}

func ToMove(r gamelog.Record) *boarddto.Move {
	return &boarddto.Move{
		From:     ToPosition(r.From),
		To:       ToPosition(r.To),
		Piece:    r.Piece.Code(),
		Target:   r.Target.Code(),
		Action:   r.Action.String(),
		Notation: r.Encode(),
	}
}

func ToPieces(b *board.Board) []boarddto.Piece {
	placed := b.Pieces()
	out := make([]boarddto.Piece, 0, len(placed))
	for _, p := range placed {
		out = append(out, boarddto.Piece{
			At:    ToPosition(p.At),
			Code:  p.Piece.Code(),
			Kind:  p.Piece.Kind.String(),
			Color: p.Piece.Color.String(),
		})
	}
	return out
}

// ToSnapshot converts without the win banner; Formatter.Snapshot adds it.
func ToSnapshot(s turn.Snapshot) *boarddto.Snapshot {
	dto := &boarddto.Snapshot{
		Ruleset:   s.Ruleset,
		Board:     s.Board.Grid(),
		Pieces:    ToPieces(s.Board),
		Turn:      s.Turn.String(),
		IsOver:    s.IsOver,
		MoveCount: s.MoveCount,
	}
	if s.LastMove != nil {
		dto.LastMove = ToMove(*s.LastMove)
	}
	if s.Winner != nil {
		w := s.Winner.String()
		dto.Winner = &w
	}
	return dto
}
