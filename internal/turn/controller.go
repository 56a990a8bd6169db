package turn

import (
	"errors"
	"fmt"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/internal/rules"
)

var (
	ErrInvalidSelection = rules.ErrInvalidSelection
	ErrNoDestinations   = fmt.Errorf("%w: piece has no legal destination", rules.ErrInvalidSelection)
	ErrIllegalMove      = errors.New("illegal move")
	ErrEmptyHistory     = errors.New("no moves to undo")
	ErrGameOver         = errors.New("game is over")
)

// Phase is the controller's state-machine position.
type Phase string

const (
	AwaitingSelection Phase = "awaiting_selection"
	PieceSelected     Phase = "piece_selected"
	GameOver          Phase = "game_over"
)

// Selection is the origin and legal destinations of a selected piece.
type Selection struct {
	Origin       board.Coord
	Destinations []board.Coord
}

// Outcome describes an applied action.
type Outcome struct {
	Record gamelog.Record
	Turn   board.Color
	IsWin  bool
	Winner board.Color
}

// SelectResult reports what a Select call did. Exactly one of Selection
// or Outcome is set unless the call only deselected.
type SelectResult struct {
	Phase      Phase
	Deselected bool
	Selection  *Selection
	Outcome    *Outcome
}

// Controller is one game's rule-enforcing state machine. It is not safe
// for concurrent use; callers serialize access.
type Controller struct {
	rules    *rules.Ruleset
	board    *board.Board
	turn     board.Color
	history  gamelog.History
	winner   *board.Color
	selected *Selection
}

// New starts a game under rs (Standard when nil).
func New(rs *rules.Ruleset) *Controller {
	if rs == nil {
		rs = rules.Standard
	}
	c := &Controller{rules: rs}
	c.NewGame()
	return c
}

// FromPosition starts a game on an arbitrary board with turn to move.
// History starts empty, so Undo cannot go past b.
func FromPosition(rs *rules.Ruleset, b *board.Board, turn board.Color) *Controller {
	c := New(rs)
	c.board = b.Clone()
	c.turn = turn
	return c
}

// Restore rebuilds a controller by replaying records from the initial layout.
func Restore(rs *rules.Ruleset, records []gamelog.Record) (*Controller, error) {
	c := New(rs)
	for i, r := range records {
		if _, err := c.Move(r.From, r.To); err != nil {
			return nil, fmt.Errorf("restore move %d (%s): %w", i+1, r, err)
		}
		last, _ := c.history.Last()
		if last != r {
			return nil, fmt.Errorf("restore move %d: %w: recorded %s, replayed %s", i+1, gamelog.ErrInvalidRecord, r, last)
		}
	}
	return c, nil
}

func (c *Controller) Rules() *rules.Ruleset { return c.rules }

func (c *Controller) Turn() board.Color { return c.turn }

func (c *Controller) IsOver() bool { return c.winner != nil }

func (c *Controller) Winner() (board.Color, bool) {
	if c.winner == nil {
		return board.Blue, false
	}
	return *c.winner, true
}

func (c *Controller) Phase() Phase {
	switch {
	case c.winner != nil:
		return GameOver
	case c.selected != nil:
		return PieceSelected
	default:
		return AwaitingSelection
	}
}

// Selected returns the current selection, if any.
func (c *Controller) Selected() (Selection, bool) {
	if c.selected == nil {
		return Selection{}, false
	}
	return Selection{Origin: c.selected.Origin, Destinations: append([]board.Coord(nil), c.selected.Destinations...)}, true
}

// Board returns a copy of the live board.
func (c *Controller) Board() *board.Board { return c.board.Clone() }

func (c *Controller) History() []gamelog.Record { return c.history.Records() }

func (c *Controller) MoveCount() int { return c.history.Len() }

// Destinations is a pure query for the current player's piece on at.
func (c *Controller) Destinations(at board.Coord) ([]board.Coord, error) {
	if c.winner != nil {
		return nil, ErrGameOver
	}
	dests, err := c.rules.LegalDestinations(c.board, at, c.turn)
	if err != nil {
		return nil, err
	}
	if len(dests) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNoDestinations, at)
	}
	return dests, nil
}

// Select drives the selection state machine.
func (c *Controller) Select(at board.Coord) (SelectResult, error) {
	if c.winner != nil {
		return SelectResult{Phase: GameOver}, ErrGameOver
	}
	if c.selected == nil {
		dests, err := c.Destinations(at)
		if err != nil {
			return SelectResult{Phase: c.Phase()}, err
		}
		c.selected = &Selection{Origin: at, Destinations: dests}
		sel, _ := c.Selected()
		return SelectResult{Phase: PieceSelected, Selection: &sel}, nil
	}

	origin := c.selected.Origin
	if at == origin {
		c.selected = nil
		return SelectResult{Phase: AwaitingSelection, Deselected: true}, nil
	}
	if !rules.Contains(c.selected.Destinations, at) {
		c.selected = nil
		return SelectResult{Phase: AwaitingSelection}, fmt.Errorf("%w: %s cannot reach %s", ErrIllegalMove, origin, at)
	}
	out := c.apply(origin, at)
	return SelectResult{Phase: c.Phase(), Outcome: &out}, nil
}

// Move validates and applies from->to regardless of the current selection.
func (c *Controller) Move(from, to board.Coord) (Outcome, error) {
	if c.winner != nil {
		return Outcome{}, ErrGameOver
	}
	dests, err := c.Destinations(from)
	if err != nil {
		return Outcome{}, err
	}
	if !rules.Contains(dests, to) {
		return Outcome{}, fmt.Errorf("%w: %s cannot reach %s", ErrIllegalMove, from, to)
	}
	return c.apply(from, to), nil
}

func (c *Controller) apply(from, to board.Coord) Outcome {
	mover, _ := c.board.Get(from)
	action, prior := rules.Apply(c.board, from, to)
	rec := gamelog.Record{From: from, To: to, Piece: mover, Target: prior, Action: action}
	c.history.Append(rec)
	c.selected = nil

	out := Outcome{Record: rec}
	if w, won := c.rules.Winner(c.board, mover.Color); won {
		c.winner = &w
		out.IsWin = true
		out.Winner = w
	}
	c.turn = c.turn.Opponent()
	out.Turn = c.turn
	return out
}

// Undo reverts the newest record and hands the turn back.
func (c *Controller) Undo() (gamelog.Record, error) {
	rec, ok := c.history.Pop()
	if !ok {
		return gamelog.Record{}, ErrEmptyHistory
	}
	rules.Revert(c.board, rec.From, rec.To, rec.Piece, rec.Target, rec.Action)
	c.turn = c.turn.Opponent()
	c.winner = nil
	c.selected = nil
	return rec, nil
}

// NewGame resets to the initial layout with Blue to move.
func (c *Controller) NewGame() {
	c.board = board.NewInitial()
	c.turn = board.Blue
	c.history.Reset()
	c.winner = nil
	c.selected = nil
}

// Snapshot is a complete, detached copy of the game state.
type Snapshot struct {
	Board     *board.Board
	Turn      board.Color
	LastMove  *gamelog.Record
	IsOver    bool
	Winner    *board.Color
	MoveCount int
	Ruleset   string
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Board:     c.board.Clone(),
		Turn:      c.turn,
		IsOver:    c.winner != nil,
		MoveCount: c.history.Len(),
		Ruleset:   c.rules.Name,
	}
	if last, ok := c.history.Last(); ok {
		s.LastMove = &last
	}
	if c.winner != nil {
		w := *c.winner
		s.Winner = &w
	}
	return s
}

// Export builds the downloadable log of the current game.
func (c *Controller) Export() *gamelog.Document {
	return gamelog.Export(c.rules.Name, c.history.Records(), c.board, c.winner)
}
