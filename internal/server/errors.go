package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/pvp"
	"github.com/park285/swapboard/internal/rules"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

var errBadRequest = errors.New("bad request")

// domainError maps a sentinel to its stable code, HTTP status and catalog
// text. seat is the caller's color; it fills the Turn and Opponent
// placeholders.
func (s *Server) domainError(err error, seat board.Color) (int, boarddto.DomainError) {
	data := map[string]string{
		"Turn":     seat.Opponent().Title(),
		"Opponent": seat.Opponent().Title(),
	}
	mk := func(status int, code, key, fallback string) (int, boarddto.DomainError) {
		return status, boarddto.DomainError{Code: code, Message: s.format.Reason(key, data, fallback)}
	}

	switch {
	case errors.Is(err, pvp.ErrUnauthorized), errors.Is(err, pvp.ErrSessionNotFound):
		return mk(http.StatusUnauthorized, boarddto.CodeUnauthorized, "unauthorized", "Invalid or missing seat token.")
	case errors.Is(err, pvp.ErrNotReady):
		st, de := mk(http.StatusConflict, boarddto.CodeNotReady, "not_ready", "Waiting for both players to connect.")
		de.Retryable = true
		return st, de
	case errors.Is(err, pvp.ErrWrongTurn):
		return mk(http.StatusConflict, boarddto.CodeWrongTurn, "wrong_turn", "It is not your turn.")
	case errors.Is(err, turn.ErrGameOver):
		return mk(http.StatusConflict, boarddto.CodeGameOver, "game_over", "The game is over.")
	case errors.Is(err, turn.ErrEmptyHistory):
		return mk(http.StatusConflict, boarddto.CodeEmptyHistory, "empty_history", "There is no move to undo.")
	case errors.Is(err, turn.ErrIllegalMove):
		return mk(http.StatusUnprocessableEntity, boarddto.CodeIllegalMove, "illegal_move", "Invalid move.")
	case errors.Is(err, rules.ErrEmptySquare):
		return mk(http.StatusUnprocessableEntity, boarddto.CodeInvalidSelection, "empty_square", "No piece exists at the given position.")
	case errors.Is(err, rules.ErrNotOwnPiece):
		return mk(http.StatusUnprocessableEntity, boarddto.CodeInvalidSelection, "not_own_piece", "That piece belongs to the other player.")
	case errors.Is(err, rules.ErrInvalidSelection):
		return mk(http.StatusUnprocessableEntity, boarddto.CodeInvalidSelection, "invalid_selection", "Invalid selection.")
	case errors.Is(err, errBadRequest):
		return mk(http.StatusBadRequest, boarddto.CodeBadRequest, "bad_request", "Malformed request.")
	default:
		obslog.L().Error("request_internal_error", zap.Error(err))
		return mk(http.StatusInternalServerError, boarddto.CodeInternal, "internal", "Internal error.")
	}
}
