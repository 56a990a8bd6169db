package pvp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/swapboard/internal/adapter/boardpresenter"
	"github.com/park285/swapboard/internal/auth"
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/rules"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

// Manager is the session registry. Every session has its own lock; the
// registry lock only guards the maps and is never held together with a
// session lock.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	tokens   map[string]TokenRef // token digest -> seat

	store     Store
	repo      Archiver
	format    *boardpresenter.Formatter
	secretLen int
	now       func() time.Time
}

type Option func(*Manager)

func WithStore(s Store) Option { return func(m *Manager) { m.store = s } }

func WithFormatter(f *boardpresenter.Formatter) Option {
	return func(m *Manager) { m.format = f }
}

func WithSecretLength(n int) Option { return func(m *Manager) { m.secretLen = n } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:  make(map[string]*GameSession),
		tokens:    make(map[string]TokenRef),
		secretLen: auth.DefaultSecretLength,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.format == nil {
		m.format = boardpresenter.NewFormatter(nil)
	}
	return m
}

// AttachRepository wires an archive for finished games.
func (m *Manager) AttachRepository(a Archiver) {
	if m != nil {
		m.repo = a
	}
}

// CreateSession opens a session with fresh seat secrets. The plain secrets
// are only returned here.
func (m *Manager) CreateSession(ctx context.Context, ruleset string) (*Created, error) {
	rs, err := rules.ByName(ruleset)
	if err != nil {
		return nil, err
	}
	out := &Created{SessionID: uuid.NewString(), Ruleset: rs.Name}
	var hashes [2]string
	for _, c := range []board.Color{board.Blue, board.Red} {
		secret, err := auth.GenerateSecret(m.secretLen)
		if err != nil {
			return nil, err
		}
		if c == board.Red && secret == out.Secrets[board.Blue] {
			return nil, errors.New("seat secrets collided")
		}
		h, err := auth.HashSecret(secret)
		if err != nil {
			return nil, err
		}
		out.Secrets[c] = secret
		hashes[c] = h
	}

	s := newSession(out.SessionID, rs, hashes, m.now())
	s.mu.Lock()
	rec := s.recordLocked()
	s.mu.Unlock()
	if m.store != nil {
		if err := m.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	obslog.L().Info("session_create", zap.String("session_id", s.ID), zap.String("ruleset", rs.Name))
	return out, nil
}

// Restore loads every stored session into the registry.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, err := m.load(ctx, id); err != nil {
			obslog.L().Warn("session_restore_skip", zap.String("session_id", id), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Login exchanges a seat secret for that seat's token. The token is stable
// for the seat until the process restarts.
func (m *Manager) Login(ctx context.Context, secret string) (Seat, error) {
	if strings.TrimSpace(secret) == "" {
		return Seat{}, ErrUnauthorized
	}
	m.mu.RLock()
	list := make([]*GameSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].createdAt.Before(list[j].createdAt) })

	for _, s := range list {
		color, ok := s.matchSecret(secret)
		if !ok {
			continue
		}
		token, err := m.issueToken(ctx, s, color)
		if err != nil {
			return Seat{}, err
		}
		obslog.L().Info("seat_login", zap.String("session_id", s.ID), zap.String("color", color.String()))
		return Seat{Token: token, SessionID: s.ID, Color: color}, nil
	}
	obslog.L().Warn("seat_login_denied")
	return Seat{}, ErrUnauthorized
}

func (m *Manager) issueToken(ctx context.Context, s *GameSession, color board.Color) (string, error) {
	s.mu.Lock()
	sl := &s.seats[color]
	if sl.token != "" {
		token := sl.token
		s.mu.Unlock()
		return token, nil
	}
	token, err := auth.NewToken()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	sl.token = token
	sl.tokenDigest = auth.TokenDigest(token)
	digest := sl.tokenDigest
	rec := s.recordLocked()
	s.mu.Unlock()

	ref := TokenRef{SessionID: s.ID, Color: color}
	m.mu.Lock()
	m.tokens[digest] = ref
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.BindToken(ctx, digest, ref); err != nil {
			return "", fmt.Errorf("bind token: %w", err)
		}
		if err := m.store.Save(ctx, rec); err != nil {
			return "", fmt.Errorf("save session: %w", err)
		}
	}
	return token, nil
}

// resolve maps a token to its session and seat, rehydrating from the store
// when the session is not in memory.
func (m *Manager) resolve(ctx context.Context, token string) (*GameSession, board.Color, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, board.Blue, ErrUnauthorized
	}
	digest := auth.TokenDigest(token)

	m.mu.RLock()
	ref, ok := m.tokens[digest]
	m.mu.RUnlock()
	if !ok && m.store != nil {
		var err error
		ref, ok, err = m.store.LookupToken(ctx, digest)
		if err != nil {
			return nil, board.Blue, fmt.Errorf("lookup token: %w", err)
		}
	}
	if !ok {
		return nil, board.Blue, ErrUnauthorized
	}
	s, err := m.load(ctx, ref.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, board.Blue, ErrUnauthorized
	}
	if err != nil {
		return nil, board.Blue, err
	}

	s.mu.Lock()
	sl := &s.seats[ref.Color]
	if sl.tokenDigest != digest {
		s.mu.Unlock()
		return nil, board.Blue, ErrUnauthorized
	}
	if sl.token == "" {
		sl.token = token
	}
	s.mu.Unlock()

	m.mu.Lock()
	m.tokens[digest] = ref
	m.mu.Unlock()
	return s, ref.Color, nil
}

func (m *Manager) load(ctx context.Context, id string) (*GameSession, error) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	if m.store == nil {
		return nil, ErrSessionNotFound
	}
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	s, err = restoreSession(rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.sessions[id]; existing != nil {
		return existing, nil
	}
	m.sessions[id] = s
	for _, sr := range rec.Seats {
		if sr.TokenDigest != "" {
			m.tokens[sr.TokenDigest] = TokenRef{SessionID: id, Color: sr.Color}
		}
	}
	obslog.L().Info("session_rehydrate", zap.String("session_id", id), zap.Int("moves", len(rec.Moves)))
	return s, nil
}

// Connect binds sink as the seat's live connection, replacing any previous
// one, and returns the full current snapshot. A replaced sink implementing
// Evicter is evicted. When both seats are connected afterwards, both receive
// player-ready.
func (m *Manager) Connect(ctx context.Context, token string, sink Sink) (string, *boarddto.Snapshot, error) {
	s, color, err := m.resolve(ctx, token)
	if err != nil {
		return "", nil, err
	}
	connID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.seats[color]
	replaced := sl.connected()
	if e, ok := sl.sink.(Evicter); ok {
		e.Evict()
	}
	sl.connID = connID
	sl.sink = sink
	snap := m.snapshotLocked(s, color)
	ready := s.readyLocked()
	if ready {
		m.emitLocked(s, boarddto.EventPlayerReady, "")
	}
	obslog.L().Info("seat_connect",
		zap.String("session_id", s.ID),
		zap.String("color", color.String()),
		zap.String("conn_id", connID),
		zap.Bool("replaced", replaced),
		zap.Bool("ready", ready),
	)
	return connID, snap, nil
}

// Disconnect releases the seat if connID is still its live connection and
// tells the other seat.
func (m *Manager) Disconnect(ctx context.Context, token, connID string) {
	s, color, err := m.resolve(ctx, token)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.seats[color]
	if sl.connID != connID {
		return
	}
	sl.connID = ""
	sl.sink = nil
	if other := &s.seats[color.Opponent()]; other.sink != nil {
		m.sendLocked(s, other, boarddto.Event{Type: boarddto.EventPlayerLeft, Color: color.String()})
	}
	obslog.L().Info("seat_disconnect", zap.String("session_id", s.ID), zap.String("color", color.String()), zap.String("conn_id", connID))
}

type gate int

const (
	gateSeat gate = iota
	gateTurn
)

// act authorizes token and runs fn under the session lock. Checks run in
// the order: seat, readiness, game over, turn. A ctx bound by WithConn must
// still hold the seat.
func (m *Manager) act(ctx context.Context, token string, g gate, fn func(s *GameSession, color board.Color) (bool, error)) (*GameSession, board.Color, error) {
	s, color, err := m.resolve(ctx, token)
	if err != nil {
		return nil, color, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := connFrom(ctx); ok && s.seats[color].connID != id {
		return s, color, ErrUnauthorized
	}
	if !s.readyLocked() {
		return s, color, ErrNotReady
	}
	if g == gateTurn {
		if s.ctrl.IsOver() {
			return s, color, turn.ErrGameOver
		}
		if s.ctrl.Turn() != color {
			return s, color, ErrWrongTurn
		}
	}
	mutated, err := fn(s, color)
	if err != nil {
		return s, color, err
	}
	if mutated {
		s.updatedAt = m.now()
		m.emitLocked(s, boarddto.EventBoardUpdate, "")
		m.persistLocked(ctx, s)
	}
	return s, color, nil
}

// Select runs the selection state machine for the caller's seat. A click on
// a legal destination applies the move.
func (m *Manager) Select(ctx context.Context, token string, at board.Coord) (turn.SelectResult, error) {
	var res turn.SelectResult
	s, color, err := m.act(ctx, token, gateTurn, func(s *GameSession, _ board.Color) (bool, error) {
		var err error
		res, err = s.ctrl.Select(at)
		return res.Outcome != nil, err
	})
	if err == nil && res.Outcome != nil {
		logMove(s, color, *res.Outcome)
	}
	return res, err
}

func (m *Manager) Move(ctx context.Context, token string, from, to board.Coord) (turn.Outcome, error) {
	var out turn.Outcome
	s, color, err := m.act(ctx, token, gateTurn, func(s *GameSession, _ board.Color) (bool, error) {
		var err error
		out, err = s.ctrl.Move(from, to)
		return err == nil, err
	})
	if err == nil {
		logMove(s, color, out)
	}
	return out, err
}

// Undo takes back the last move. Either seat may undo once both are connected.
func (m *Manager) Undo(ctx context.Context, token string) (*boarddto.Snapshot, error) {
	var snap *boarddto.Snapshot
	s, color, err := m.act(ctx, token, gateSeat, func(s *GameSession, color board.Color) (bool, error) {
		if _, err := s.ctrl.Undo(); err != nil {
			return false, err
		}
		snap = m.snapshotLocked(s, color)
		return true, nil
	})
	if err == nil {
		obslog.L().Info("board_undo", zap.String("session_id", s.ID), zap.String("by", color.String()))
	}
	return snap, err
}

func (m *Manager) NewGame(ctx context.Context, token string) (*boarddto.Snapshot, error) {
	var snap *boarddto.Snapshot
	s, color, err := m.act(ctx, token, gateSeat, func(s *GameSession, color board.Color) (bool, error) {
		s.ctrl.NewGame()
		s.game++
		s.startedAt = m.now()
		snap = m.snapshotLocked(s, color)
		return true, nil
	})
	if err == nil {
		obslog.L().Info("board_new_game", zap.String("session_id", s.ID), zap.String("by", color.String()))
	}
	return snap, err
}

// Snapshot returns the caller's current view without requiring readiness.
func (m *Manager) Snapshot(ctx context.Context, token string) (*boarddto.Snapshot, error) {
	s, color, err := m.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.snapshotLocked(s, color), nil
}

// DownloadLog exports the current game's log for a seated player.
func (m *Manager) DownloadLog(ctx context.Context, token string) (*gamelog.Document, error) {
	s, _, err := m.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Export(), nil
}

func (m *Manager) snapshotLocked(s *GameSession, viewer board.Color) *boarddto.Snapshot {
	dto := m.format.Snapshot(s.ctrl.Snapshot())
	dto.SessionID = s.ID
	dto.Ready = s.readyLocked()
	dto.Seat = viewer.String()
	return dto
}

// emitLocked sends one event of type typ, with that seat's snapshot, to every
// connected seat.
func (m *Manager) emitLocked(s *GameSession, typ, color string) {
	for i := range s.seats {
		sl := &s.seats[i]
		if sl.sink == nil {
			continue
		}
		m.sendLocked(s, sl, boarddto.Event{Type: typ, Snapshot: m.snapshotLocked(s, sl.color), Color: color})
	}
}

func (m *Manager) sendLocked(s *GameSession, sl *seat, ev boarddto.Event) {
	if !sl.sink.Send(ev) {
		obslog.L().Warn("seat_send_dropped",
			zap.String("session_id", s.ID),
			zap.String("color", sl.color.String()),
			zap.String("event", ev.Type),
		)
	}
}

// persistLocked saves the session and archives it when the game has ended.
// Failures are logged; the in-memory state stays authoritative.
func (m *Manager) persistLocked(ctx context.Context, s *GameSession) {
	rec := s.recordLocked()
	if m.store != nil {
		if err := m.store.Save(ctx, rec); err != nil {
			obslog.L().Error("session_persist_error", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	if rec.Status == StatusFinished {
		m.persistIfFinal(ctx, rec)
	}
}

func (m *Manager) persistIfFinal(ctx context.Context, rec *SessionRecord) {
	if m.repo == nil {
		return
	}
	if err := m.repo.SaveResult(ctx, rec); err != nil {
		obslog.L().Error("game_archive_error", zap.String("game_id", rec.GameID()), zap.Error(err))
		return
	}
	obslog.L().Info("game_archive", zap.String("game_id", rec.GameID()), zap.Int("moves", len(rec.Moves)))
}

func logMove(s *GameSession, color board.Color, out turn.Outcome) {
	fields := []zap.Field{
		zap.String("session_id", s.ID),
		zap.String("color", color.String()),
		zap.String("move", out.Record.String()),
		zap.String("turn", out.Turn.String()),
	}
	if out.IsWin {
		fields = append(fields, zap.String("winner", out.Winner.String()))
	}
	obslog.L().Info("board_move", fields...)
}
