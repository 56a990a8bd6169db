package turn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/rules"
)

func TestSelectPawnOffersOneStep(t *testing.T) {
	c := New(nil)

	res, err := c.Select(board.At(1, 0))
	require.NoError(t, err)
	require.NotNil(t, res.Selection)
	assert.Equal(t, PieceSelected, res.Phase)
	assert.Contains(t, res.Selection.Destinations, board.At(2, 0))
	assert.NotContains(t, res.Selection.Destinations, board.At(3, 0))
}

func TestMoveFlipsTurn(t *testing.T) {
	c := New(nil)

	out, err := c.Move(board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)
	assert.Equal(t, rules.ActionMove, out.Record.Action)
	assert.Equal(t, board.Red, out.Turn)
	assert.Equal(t, board.Red, c.Turn())
	assert.False(t, out.IsWin)
}

func TestSelectThenDestinationApplies(t *testing.T) {
	c := New(nil)

	_, err := c.Select(board.At(1, 0))
	require.NoError(t, err)
	res, err := c.Select(board.At(2, 0))
	require.NoError(t, err)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, AwaitingSelection, res.Phase)
	assert.Equal(t, board.Red, res.Outcome.Turn)

	p, ok := c.Board().Get(board.At(2, 0))
	require.True(t, ok)
	assert.Equal(t, board.Piece{Kind: board.Pawn, Color: board.Blue}, p)
}

func TestSwapKeepsBothPieces(t *testing.T) {
	b := board.New()
	rook := board.Piece{Kind: board.Rook, Color: board.Blue}
	bishop := board.Piece{Kind: board.Bishop, Color: board.Blue}
	b.Place(board.At(2, 2), rook)
	b.Place(board.At(2, 4), bishop)
	b.Place(board.At(0, 0), board.Piece{Kind: board.King, Color: board.Blue})
	b.Place(board.At(7, 7), board.Piece{Kind: board.King, Color: board.Red})
	c := FromPosition(rules.Standard, b, board.Blue)

	res, err := c.Select(board.At(2, 2))
	require.NoError(t, err)
	assert.Contains(t, res.Selection.Destinations, board.At(2, 4))

	res, err = c.Select(board.At(2, 4))
	require.NoError(t, err)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, rules.ActionSwap, res.Outcome.Record.Action)

	after := c.Board()
	got, _ := after.Get(board.At(2, 4))
	assert.Equal(t, rook, got)
	got, _ = after.Get(board.At(2, 2))
	assert.Equal(t, bishop, got)
	assert.Equal(t, 1, after.Count(board.Rook, board.Blue))
	assert.Equal(t, 1, after.Count(board.Bishop, board.Blue))
}

func TestBishopCannotSwapSideways(t *testing.T) {
	b := board.New()
	b.Place(board.At(2, 2), board.Piece{Kind: board.Rook, Color: board.Blue})
	b.Place(board.At(2, 4), board.Piece{Kind: board.Bishop, Color: board.Blue})
	b.Place(board.At(0, 0), board.Piece{Kind: board.King, Color: board.Blue})
	b.Place(board.At(7, 7), board.Piece{Kind: board.King, Color: board.Red})
	c := FromPosition(rules.Standard, b, board.Blue)
	before := c.Snapshot()

	res, err := c.Select(board.At(2, 4))
	require.NoError(t, err)
	assert.NotContains(t, res.Selection.Destinations, board.At(2, 2))

	res, err = c.Select(board.At(2, 2))
	require.ErrorIs(t, err, ErrIllegalMove)
	assert.Nil(t, res.Outcome)
	assert.Equal(t, AwaitingSelection, c.Phase())
	assert.Equal(t, before, c.Snapshot())
	assert.True(t, b.Equal(c.Board()))
}

func TestUndoOnFreshGame(t *testing.T) {
	c := New(nil)
	before := c.Snapshot()

	_, err := c.Undo()
	require.ErrorIs(t, err, ErrEmptyHistory)
	assert.Equal(t, before, c.Snapshot())
}

func TestRejectedActionsLeaveStateUnchanged(t *testing.T) {
	c := New(nil)
	before := c.Snapshot()

	_, err := c.Select(board.At(4, 4))
	require.ErrorIs(t, err, ErrInvalidSelection)

	_, err = c.Select(board.At(6, 0))
	require.ErrorIs(t, err, ErrInvalidSelection)

	_, err = c.Move(board.At(1, 0), board.At(3, 0))
	require.ErrorIs(t, err, ErrIllegalMove)

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, AwaitingSelection, c.Phase())
}

func TestDeselectAndRejectClearSelection(t *testing.T) {
	c := New(nil)

	_, err := c.Select(board.At(1, 0))
	require.NoError(t, err)
	res, err := c.Select(board.At(1, 0))
	require.NoError(t, err)
	assert.True(t, res.Deselected)
	assert.Equal(t, AwaitingSelection, c.Phase())

	_, err = c.Select(board.At(1, 0))
	require.NoError(t, err)
	res, err = c.Select(board.At(5, 5))
	require.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, AwaitingSelection, res.Phase)
	_, selected := c.Selected()
	assert.False(t, selected)
	assert.Equal(t, board.Blue, c.Turn())
	assert.Zero(t, c.MoveCount())
}

func TestCapturingLastKingEndsGame(t *testing.T) {
	b := board.New()
	b.Place(board.At(3, 0), board.Piece{Kind: board.Rook, Color: board.Blue})
	b.Place(board.At(0, 0), board.Piece{Kind: board.King, Color: board.Blue})
	b.Place(board.At(3, 5), board.Piece{Kind: board.King, Color: board.Red})
	c := FromPosition(rules.Standard, b, board.Blue)

	out, err := c.Move(board.At(3, 0), board.At(3, 5))
	require.NoError(t, err)
	assert.Equal(t, rules.ActionCapture, out.Record.Action)
	assert.True(t, out.IsWin)
	assert.Equal(t, board.Blue, out.Winner)
	assert.Equal(t, GameOver, c.Phase())

	_, err = c.Select(board.At(0, 0))
	require.ErrorIs(t, err, ErrGameOver)
	_, err = c.Move(board.At(0, 0), board.At(1, 0))
	require.ErrorIs(t, err, ErrGameOver)

	_, err = c.Undo()
	require.NoError(t, err)
	assert.False(t, c.IsOver())
	assert.Equal(t, board.Blue, c.Turn())
	assert.True(t, b.Equal(c.Board()))
}

func TestApplyThenUndoRestoresBoard(t *testing.T) {
	for _, rs := range []*rules.Ruleset{rules.Standard, rules.Frontline} {
		t.Run(rs.Name, func(t *testing.T) {
			c := New(rs)
			rng := rand.New(rand.NewSource(7))

			boards := []*board.Board{c.Board()}
			turns := []board.Color{c.Turn()}
			for range 60 {
				if c.IsOver() {
					break
				}
				from, to, ok := randomMove(c, rng)
				if !ok {
					break
				}
				out, err := c.Move(from, to)
				require.NoError(t, err)
				assert.Equal(t, turns[len(turns)-1].Opponent(), out.Turn)
				boards = append(boards, c.Board())
				turns = append(turns, out.Turn)
			}
			require.Greater(t, c.MoveCount(), 5)

			for i := len(boards) - 1; i > 0; i-- {
				_, err := c.Undo()
				require.NoError(t, err)
				assert.True(t, boards[i-1].Equal(c.Board()), "after undo to %d", i-1)
				assert.Equal(t, turns[i-1], c.Turn())
			}
			assert.True(t, board.NewInitial().Equal(c.Board()))
			_, err := c.Undo()
			require.ErrorIs(t, err, ErrEmptyHistory)
		})
	}
}

func TestRestoreReplaysHistory(t *testing.T) {
	c := New(nil)
	rng := rand.New(rand.NewSource(11))
	for range 12 {
		if c.IsOver() {
			break
		}
		from, to, ok := randomMove(c, rng)
		require.True(t, ok)
		_, err := c.Move(from, to)
		require.NoError(t, err)
	}

	restored, err := Restore(rules.Standard, c.History())
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot(), restored.Snapshot())
}

func TestNoDestinationsIsInvalidSelection(t *testing.T) {
	b := board.New()
	b.Place(board.At(7, 0), board.Piece{Kind: board.Pawn, Color: board.Blue})
	b.Place(board.At(0, 0), board.Piece{Kind: board.King, Color: board.Blue})
	b.Place(board.At(7, 7), board.Piece{Kind: board.King, Color: board.Red})
	c := FromPosition(rules.Standard, b, board.Blue)

	_, err := c.Select(board.At(7, 0))
	require.ErrorIs(t, err, ErrNoDestinations)
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Equal(t, AwaitingSelection, c.Phase())
}

func TestNewGameResets(t *testing.T) {
	c := New(nil)
	_, err := c.Move(board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)

	c.NewGame()
	s := c.Snapshot()
	assert.True(t, board.NewInitial().Equal(s.Board))
	assert.Equal(t, board.Blue, s.Turn)
	assert.Nil(t, s.LastMove)
	assert.Zero(t, s.MoveCount)
}

func randomMove(c *Controller, rng *rand.Rand) (board.Coord, board.Coord, bool) {
	type option struct {
		from  board.Coord
		dests []board.Coord
	}
	var opts []option
	for _, pl := range c.Board().Pieces() {
		if pl.Piece.Color != c.Turn() {
			continue
		}
		dests, err := c.Destinations(pl.At)
		if err != nil {
			continue
		}
		opts = append(opts, option{pl.At, dests})
	}
	if len(opts) == 0 {
		return board.Coord{}, board.Coord{}, false
	}
	o := opts[rng.Intn(len(opts))]
	return o.from, o.dests[rng.Intn(len(o.dests))], true
}
