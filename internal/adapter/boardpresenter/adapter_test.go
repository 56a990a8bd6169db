package boardpresenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/msgcat"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

func TestSnapshotAfterMove(t *testing.T) {
	c := turn.New(nil)
	_, err := c.Move(board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)

	dto := ToSnapshot(c.Snapshot())
	assert.Equal(t, "red", dto.Turn)
	assert.Equal(t, 1, dto.MoveCount)
	assert.Len(t, dto.Pieces, 24)
	require.NotNil(t, dto.LastMove)
	assert.Equal(t, boarddto.Position{Row: 2, Col: 0}, dto.LastMove.To)
	assert.Equal(t, [5]string{"a7", "a6", "p0", "n", "move"}, dto.LastMove.Notation)
	assert.Equal(t, "p0", dto.Board[2][0])
	assert.Nil(t, dto.Winner)
}

func TestFromPositionRejectsOffBoard(t *testing.T) {
	_, err := FromPosition(boarddto.Position{Row: 8, Col: 0})
	require.Error(t, err)
	c, err := FromPosition(boarddto.Position{Row: 7, Col: 7})
	require.NoError(t, err)
	assert.Equal(t, board.At(7, 7), c)
}

func TestFormatterWinMessage(t *testing.T) {
	cat, err := msgcat.New("")
	require.NoError(t, err)
	f := NewFormatter(cat)
	assert.Equal(t, "Red Win!", f.WinMessage(board.Red))
	assert.Equal(t, "Blue Win!", NewFormatter(nil).WinMessage(board.Blue))
	assert.Equal(t, "It is Blue's turn.", f.Reason(boarddto.CodeWrongTurn, map[string]string{"Turn": "Blue"}, ""))
	assert.Equal(t, "fb", f.Reason("nope", nil, "fb"))
}

func TestFormatterSelect(t *testing.T) {
	c := turn.New(nil)
	res, err := c.Select(board.At(1, 0))
	require.NoError(t, err)

	dto := NewFormatter(nil).Select(res)
	assert.True(t, dto.Valid)
	assert.Equal(t, []boarddto.Position{{Row: 2, Col: 0}}, dto.ValidDestinations)
	assert.Nil(t, dto.Move)
}
