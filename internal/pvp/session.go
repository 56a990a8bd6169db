package pvp

import (
	"fmt"
	"sync"
	"time"

	"github.com/park285/swapboard/internal/auth"
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/internal/rules"
	"github.com/park285/swapboard/internal/turn"
)

type seat struct {
	color       board.Color
	secretHash  string
	token       string
	tokenDigest string
	connID      string
	sink        Sink
}

func (s *seat) connected() bool { return s.connID != "" }

// GameSession binds two seats to one game. mu serializes every mutation and
// every snapshot.
type GameSession struct {
	ID string

	mu        sync.Mutex
	ctrl      *turn.Controller
	seats     [2]seat
	game      int
	createdAt time.Time
	updatedAt time.Time
	startedAt time.Time
}

func newSession(id string, rs *rules.Ruleset, hashes [2]string, now time.Time) *GameSession {
	s := &GameSession{
		ID:        id,
		ctrl:      turn.New(rs),
		game:      1,
		createdAt: now,
		updatedAt: now,
		startedAt: now,
	}
	for _, c := range []board.Color{board.Blue, board.Red} {
		s.seats[c] = seat{color: c, secretHash: hashes[c]}
	}
	return s
}

// restoreSession rebuilds a session by replaying its stored move log.
func restoreSession(rec *SessionRecord) (*GameSession, error) {
	rs, err := rules.ByName(rec.Ruleset)
	if err != nil {
		return nil, err
	}
	records, err := gamelog.DecodeAll(rec.Moves)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", rec.ID, err)
	}
	ctrl, err := turn.Restore(rs, records)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", rec.ID, err)
	}
	s := &GameSession{
		ID:        rec.ID,
		ctrl:      ctrl,
		game:      rec.Game,
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
		startedAt: rec.StartedAt,
	}
	if s.game < 1 {
		s.game = 1
	}
	for _, c := range []board.Color{board.Blue, board.Red} {
		sr := rec.Seats[c]
		s.seats[c] = seat{color: c, secretHash: sr.SecretHash, tokenDigest: sr.TokenDigest}
	}
	return s, nil
}

func (s *GameSession) readyLocked() bool {
	return s.seats[board.Blue].connected() && s.seats[board.Red].connected()
}

// matchSecret checks secret against both seats. Hashes never change after
// creation, so no lock is taken.
func (s *GameSession) matchSecret(secret string) (board.Color, bool) {
	for _, c := range []board.Color{board.Blue, board.Red} {
		ok, err := auth.VerifySecret(secret, s.seats[c].secretHash)
		if err == nil && ok {
			return c, true
		}
	}
	return board.Blue, false
}

func (s *GameSession) recordLocked() *SessionRecord {
	rec := &SessionRecord{
		ID:        s.ID,
		Ruleset:   s.ctrl.Rules().Name,
		Game:      s.game,
		Moves:     gamelog.EncodeAll(s.ctrl.History()),
		Status:    StatusActive,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		StartedAt: s.startedAt,
	}
	for _, c := range []board.Color{board.Blue, board.Red} {
		rec.Seats[c] = SeatRecord{Color: c, SecretHash: s.seats[c].secretHash, TokenDigest: s.seats[c].tokenDigest}
	}
	if w, over := s.ctrl.Winner(); over {
		rec.Status = StatusFinished
		rec.Winner = &w
	}
	return rec
}

func gameID(sessionID string, game int) string { return fmt.Sprintf("%s-%d", sessionID, game) }
