package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/internal/pvp"
	"github.com/park285/swapboard/pkg/boarddto"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req boarddto.LoginRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	seat, err := s.mgr.Login(r.Context(), req.Password)
	if errors.Is(err, pvp.ErrUnauthorized) {
		writeJSON(w, http.StatusUnauthorized, boarddto.LoginResponse{
			Success: false,
			Message: s.format.LoginMessage(false, board.Blue),
		})
		return
	}
	if err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	writeJSON(w, http.StatusOK, boarddto.LoginResponse{
		Success:   true,
		Token:     seat.Token,
		Color:     seat.Color.String(),
		SessionID: seat.SessionID,
		Message:   s.format.LoginMessage(true, seat.Color),
	})
}

func (s *Server) downloadLog(w http.ResponseWriter, r *http.Request) {
	doc, err := s.mgr.DownloadLog(r.Context(), seatToken(r))
	if err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	writeLog(w, doc, "game_log.json")
}

func writeLog(w http.ResponseWriter, doc *gamelog.Document, name string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeJSON(w, http.StatusOK, doc)
}
