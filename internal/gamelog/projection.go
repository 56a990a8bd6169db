package gamelog

import (
	"errors"
	"fmt"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/rules"
)

var ErrOutOfRange = errors.New("replay position out of range")

// Projection replays a record sequence from the initial layout. The cursor
// counts applied records; Backward undoes exactly what Forward applied.
type Projection struct {
	records []Record
	rs      *rules.Ruleset
	board   *board.Board
	cursor  int
}

// NewProjection starts at the initial layout. With a non-nil ruleset every
// step is also checked for legality and turn order.
func NewProjection(records []Record, rs *rules.Ruleset) *Projection {
	return &Projection{
		records: append([]Record(nil), records...),
		rs:      rs,
		board:   board.NewInitial(),
	}
}

func (p *Projection) Len() int    { return len(p.records) }
func (p *Projection) Cursor() int { return p.cursor }

// Board returns a copy of the projected board at the cursor.
func (p *Projection) Board() *board.Board { return p.board.Clone() }

func (p *Projection) Forward() error {
	if p.cursor >= len(p.records) {
		return fmt.Errorf("%w: already at move %d", ErrOutOfRange, p.cursor)
	}
	r := p.records[p.cursor]
	if err := p.check(r); err != nil {
		return fmt.Errorf("move %d: %w", p.cursor+1, err)
	}
	rules.Apply(p.board, r.From, r.To)
	p.cursor++
	return nil
}

func (p *Projection) Backward() error {
	if p.cursor == 0 {
		return fmt.Errorf("%w: already at the initial layout", ErrOutOfRange)
	}
	r := p.records[p.cursor-1]
	rules.Revert(p.board, r.From, r.To, r.Piece, r.Target, r.Action)
	p.cursor--
	return nil
}

// Seek moves the cursor to exactly i applied records.
func (p *Projection) Seek(i int) error {
	if i < 0 || i > len(p.records) {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrOutOfRange, i, len(p.records))
	}
	for p.cursor < i {
		if err := p.Forward(); err != nil {
			return err
		}
	}
	for p.cursor > i {
		if err := p.Backward(); err != nil {
			return err
		}
	}
	return nil
}

// At returns the board after exactly i records.
func (p *Projection) At(i int) (*board.Board, error) {
	if err := p.Seek(i); err != nil {
		return nil, err
	}
	return p.Board(), nil
}

func (p *Projection) check(r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if got, _ := p.board.Get(r.From); got != r.Piece {
		return fmt.Errorf("%w: expected %s on %s, found %s", ErrInvalidRecord, r.Piece.Code(), r.From, got.Code())
	}
	if got, _ := p.board.Get(r.To); got != r.Target {
		return fmt.Errorf("%w: expected %s on %s, found %s", ErrInvalidRecord, r.Target.Code(), r.To, got.Code())
	}
	if p.rs == nil {
		return nil
	}
	mover := board.Blue
	if p.cursor%2 == 1 {
		mover = board.Red
	}
	if r.Piece.Color != mover {
		return fmt.Errorf("%w: %s moved out of turn", ErrInvalidRecord, r.Piece.Color)
	}
	ok, err := p.rs.IsLegal(p.board, r.From, r.To, mover)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not legal under %s rules", ErrInvalidRecord, r, p.rs.Name)
	}
	return nil
}

// Replay returns the board after every record has been applied.
func Replay(records []Record, rs *rules.Ruleset) (*board.Board, error) {
	p := NewProjection(records, rs)
	if err := p.Seek(p.Len()); err != nil {
		return nil, err
	}
	return p.Board(), nil
}
