package server

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/swapboard/internal/adapter/boardpresenter"
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/rules"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

// localTable is one hot-seat board shared by every local client.
type localTable struct {
	mu   sync.Mutex
	ctrl *turn.Controller
}

func newLocalTable(rs *rules.Ruleset) *localTable {
	return &localTable{ctrl: turn.New(rs)}
}

func (s *Server) localSession(w http.ResponseWriter, _ *http.Request) {
	t := s.local
	t.mu.Lock()
	snap := s.format.Snapshot(t.ctrl.Snapshot())
	t.mu.Unlock()
	snap.Ready = true
	writeJSON(w, http.StatusOK, boarddto.SessionResponse{Snapshot: snap})
}

func (s *Server) localSelect(w http.ResponseWriter, r *http.Request) {
	var req boarddto.SelectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	at, err := boardpresenter.FromPosition(req.Position)
	if err != nil {
		s.writeError(w, errors.Join(errBadRequest, err), board.Blue)
		return
	}

	t := s.local
	t.mu.Lock()
	mover := t.ctrl.Turn()
	res, err := t.ctrl.Select(at)
	t.mu.Unlock()
	if err != nil {
		if _, de := s.domainError(err, mover); de.Code != boarddto.CodeInternal {
			writeJSON(w, http.StatusOK, boarddto.SelectResponse{ValidDestinations: []boarddto.Position{}, Reason: de.Message})
			return
		}
		s.writeError(w, err, mover)
		return
	}
	if res.Outcome != nil {
		logLocalMove(*res.Outcome)
	}
	writeJSON(w, http.StatusOK, s.format.Select(res))
}

func (s *Server) localMove(w http.ResponseWriter, r *http.Request) {
	var req boarddto.MoveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	from, err1 := boardpresenter.FromPosition(req.From)
	to, err2 := boardpresenter.FromPosition(req.To)
	if err := errors.Join(err1, err2); err != nil {
		s.writeError(w, errors.Join(errBadRequest, err), board.Blue)
		return
	}

	t := s.local
	t.mu.Lock()
	mover := t.ctrl.Turn()
	out, err := t.ctrl.Move(from, to)
	t.mu.Unlock()
	if err != nil {
		if _, de := s.domainError(err, mover); de.Code != boarddto.CodeInternal {
			writeJSON(w, http.StatusOK, boarddto.MoveResponse{Success: false, Reason: de.Message})
			return
		}
		s.writeError(w, err, mover)
		return
	}
	logLocalMove(out)
	writeJSON(w, http.StatusOK, s.format.Move(out))
}

func (s *Server) localUndo(w http.ResponseWriter, _ *http.Request) {
	t := s.local
	t.mu.Lock()
	mover := t.ctrl.Turn()
	_, err := t.ctrl.Undo()
	snap := s.format.Snapshot(t.ctrl.Snapshot())
	t.mu.Unlock()
	snap.Ready = true
	if err != nil {
		_, de := s.domainError(err, mover)
		writeJSON(w, http.StatusOK, boarddto.UndoResponse{Success: false, Reason: de.Message})
		return
	}
	writeJSON(w, http.StatusOK, boarddto.UndoResponse{Success: true, Snapshot: snap})
}

func (s *Server) localNewGame(w http.ResponseWriter, _ *http.Request) {
	t := s.local
	t.mu.Lock()
	t.ctrl.NewGame()
	snap := s.format.Snapshot(t.ctrl.Snapshot())
	t.mu.Unlock()
	snap.Ready = true
	obslog.L().Info("local_new_game")
	writeJSON(w, http.StatusOK, boarddto.NewGameResponse{Snapshot: snap})
}

func (s *Server) localLog(w http.ResponseWriter, _ *http.Request) {
	t := s.local
	t.mu.Lock()
	doc := t.ctrl.Export()
	t.mu.Unlock()
	writeLog(w, doc, "game_log.json")
}

func logLocalMove(out turn.Outcome) {
	obslog.L().Info("local_move",
		zap.String("move", out.Record.String()),
		zap.String("turn", out.Turn.String()),
		zap.Bool("win", out.IsWin),
	)
}
