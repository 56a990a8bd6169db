package pvp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

type recorder struct {
	mu      sync.Mutex
	events  []boarddto.Event
	evicted bool
}

func (r *recorder) Evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = true
}

func (r *recorder) wasEvicted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

func (r *recorder) Send(ev boarddto.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) take() []boarddto.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type table struct {
	m           *Manager
	created     *Created
	blue, red   Seat
	blueS, redS *recorder
	blueC, redC string
}

// seatBoth creates a session, logs in both seats and connects them.
func seatBoth(t *testing.T, m *Manager) *table {
	t.Helper()
	ctx := context.Background()
	created, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	tb := &table{m: m, created: created, blueS: &recorder{}, redS: &recorder{}}
	tb.blue, err = m.Login(ctx, created.Secret(board.Blue))
	require.NoError(t, err)
	tb.red, err = m.Login(ctx, created.Secret(board.Red))
	require.NoError(t, err)
	require.Equal(t, board.Blue, tb.blue.Color)
	require.Equal(t, board.Red, tb.red.Color)

	tb.blueC, _, err = m.Connect(ctx, tb.blue.Token, tb.blueS)
	require.NoError(t, err)
	tb.redC, _, err = m.Connect(ctx, tb.red.Token, tb.redS)
	require.NoError(t, err)
	return tb
}

func TestLoginRejectsWrongSecret(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	_, err := m.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = m.Login(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Login(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginTokenIsStablePerSeat(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	created, err := m.CreateSession(ctx, "frontline")
	require.NoError(t, err)
	assert.Equal(t, "frontline", created.Ruleset)

	a, err := m.Login(ctx, created.Secret(board.Red))
	require.NoError(t, err)
	b, err := m.Login(ctx, created.Secret(board.Red))
	require.NoError(t, err)
	assert.Equal(t, a.Token, b.Token)
	assert.Equal(t, created.SessionID, a.SessionID)
}

func TestCreateSessionRejectsUnknownRuleset(t *testing.T) {
	_, err := NewManager().CreateSession(context.Background(), "fide")
	assert.Error(t, err)
}

func TestConnectSignalsReadiness(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	created, err := m.CreateSession(ctx, "")
	require.NoError(t, err)
	blue, err := m.Login(ctx, created.Secret(board.Blue))
	require.NoError(t, err)
	red, err := m.Login(ctx, created.Secret(board.Red))
	require.NoError(t, err)

	blueS, redS := &recorder{}, &recorder{}
	_, snap, err := m.Connect(ctx, blue.Token, blueS)
	require.NoError(t, err)
	assert.False(t, snap.Ready)
	assert.Equal(t, "blue", snap.Seat)
	assert.Equal(t, 0, blueS.count(boarddto.EventPlayerReady))

	_, err = m.Move(ctx, blue.Token, board.At(1, 0), board.At(2, 0))
	assert.ErrorIs(t, err, ErrNotReady)

	_, snap, err = m.Connect(ctx, red.Token, redS)
	require.NoError(t, err)
	assert.True(t, snap.Ready)
	assert.Equal(t, 1, blueS.count(boarddto.EventPlayerReady))
	assert.Equal(t, 1, redS.count(boarddto.EventPlayerReady))
}

func TestMoveRequiresValidToken(t *testing.T) {
	m := NewManager()
	seatBoth(t, m)
	ctx := context.Background()

	_, err := m.Move(ctx, "", board.At(1, 0), board.At(2, 0))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Move(ctx, "forged", board.At(1, 0), board.At(2, 0))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = m.Connect(ctx, "forged", &recorder{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestWrongTurnLeavesStateUnchanged(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	before, err := m.Snapshot(ctx, tb.red.Token)
	require.NoError(t, err)
	tb.blueS.take()
	tb.redS.take()

	_, err = m.Move(ctx, tb.red.Token, board.At(6, 0), board.At(5, 0))
	assert.ErrorIs(t, err, ErrWrongTurn)
	_, err = m.Select(ctx, tb.red.Token, board.At(6, 0))
	assert.ErrorIs(t, err, ErrWrongTurn)

	after, err := m.Snapshot(ctx, tb.red.Token)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, tb.blueS.take())
	assert.Empty(t, tb.redS.take())
}

func TestMoveBroadcastsOnceToEachSeat(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	tb.blueS.take()
	tb.redS.take()

	out, err := m.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)
	assert.Equal(t, board.Red, out.Turn)

	for _, r := range []*recorder{tb.blueS, tb.redS} {
		evs := r.take()
		require.Len(t, evs, 1)
		assert.Equal(t, boarddto.EventBoardUpdate, evs[0].Type)
		require.NotNil(t, evs[0].Snapshot)
		assert.Equal(t, "red", evs[0].Snapshot.Turn)
		assert.Equal(t, 1, evs[0].Snapshot.MoveCount)
		require.NotNil(t, evs[0].Snapshot.LastMove)
	}
}

func TestSelectBroadcastsOnlyWhenApplied(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	tb.blueS.take()
	tb.redS.take()

	res, err := m.Select(ctx, tb.blue.Token, board.At(1, 0))
	require.NoError(t, err)
	assert.Equal(t, turn.PieceSelected, res.Phase)
	assert.Empty(t, tb.redS.take())

	res, err = m.Select(ctx, tb.blue.Token, board.At(2, 0))
	require.NoError(t, err)
	require.NotNil(t, res.Outcome)
	assert.Len(t, tb.blueS.take(), 1)
	assert.Len(t, tb.redS.take(), 1)
}

func TestUndoAndNewGameAreNotTurnGated(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()

	_, err := m.Undo(ctx, tb.red.Token)
	assert.ErrorIs(t, err, turn.ErrEmptyHistory)

	_, err = m.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)
	snap, err := m.Undo(ctx, tb.blue.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.MoveCount)
	assert.Equal(t, "blue", snap.Turn)

	_, err = m.Move(ctx, tb.blue.Token, board.At(1, 1), board.At(2, 1))
	require.NoError(t, err)
	snap, err = m.NewGame(ctx, tb.red.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.MoveCount)
	assert.Equal(t, "red", snap.Seat)

	doc, err := m.DownloadLog(ctx, tb.red.Token)
	require.NoError(t, err)
	assert.Empty(t, doc.GameLog)
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	tb.blueS.take()

	// a stale connection id is ignored
	m.Disconnect(ctx, tb.red.Token, "stale")
	assert.Empty(t, tb.blueS.take())

	m.Disconnect(ctx, tb.red.Token, tb.redC)
	evs := tb.blueS.take()
	require.Len(t, evs, 1)
	assert.Equal(t, boarddto.EventPlayerLeft, evs[0].Type)
	assert.Equal(t, "red", evs[0].Color)

	_, err := m.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestReconnectReplacesConnection(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	_, err := m.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)

	fresh := &recorder{}
	connID, snap, err := m.Connect(ctx, tb.red.Token, fresh)
	require.NoError(t, err)
	assert.NotEqual(t, tb.redC, connID)
	assert.Equal(t, 1, snap.MoveCount)
	assert.Equal(t, "red", snap.Turn)

	// the old connection closing must not unseat the new one
	m.Disconnect(ctx, tb.red.Token, tb.redC)
	tb.redS.take()
	_, err = m.Move(ctx, tb.red.Token, board.At(6, 0), board.At(5, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.count(boarddto.EventBoardUpdate))
	assert.Empty(t, tb.redS.take())
}

func TestReplacedConnectionCannotAct(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()

	fresh := &recorder{}
	connID, _, err := m.Connect(ctx, tb.blue.Token, fresh)
	require.NoError(t, err)
	assert.True(t, tb.blueS.wasEvicted())
	assert.False(t, fresh.wasEvicted())

	stale := WithConn(ctx, tb.blueC)
	_, err = m.Move(stale, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Select(stale, tb.blue.Token, board.At(1, 0))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.NewGame(stale, tb.blue.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	snap, err := m.Snapshot(ctx, tb.blue.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.MoveCount)

	out, err := m.Move(WithConn(ctx, connID), tb.blue.Token, board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)
	assert.Equal(t, board.Red, out.Turn)
}

func TestConcurrentActionsAreSerialized(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, _ = m.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Move(ctx, tb.red.Token, board.At(6, 0), board.At(5, 0))
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Undo(ctx, tb.red.Token)
		}()
		go func() {
			defer wg.Done()
			snap, err := m.Snapshot(ctx, tb.blue.Token)
			if err != nil {
				return
			}
			// blue moves first, so an even count means blue to move
			want := "blue"
			if snap.MoveCount%2 == 1 {
				want = "red"
			}
			assert.Equal(t, want, snap.Turn)
		}()
	}
	wg.Wait()

	snap, err := m.Snapshot(ctx, tb.blue.Token)
	require.NoError(t, err)
	doc, err := m.DownloadLog(ctx, tb.blue.Token)
	require.NoError(t, err)
	assert.Len(t, doc.GameLog, snap.MoveCount)
	assert.LessOrEqual(t, snap.MoveCount, 2)
	if snap.MoveCount%2 == 0 {
		assert.Equal(t, "blue", snap.Turn)
	} else {
		assert.Equal(t, "red", snap.Turn)
	}
}

func TestRehydrateFromRedis(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	first := NewManager(WithStore(NewRedisStore(rdb, time.Hour)))
	tb := seatBoth(t, first)
	_, err := first.Move(ctx, tb.blue.Token, board.At(1, 0), board.At(2, 0))
	require.NoError(t, err)
	_, err = first.Move(ctx, tb.red.Token, board.At(6, 3), board.At(5, 3))
	require.NoError(t, err)

	second := NewManager(WithStore(NewRedisStore(rdb, time.Hour)))
	snap, err := second.Snapshot(ctx, tb.blue.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.MoveCount)
	assert.Equal(t, "blue", snap.Turn)
	assert.False(t, snap.Ready)

	// secrets still work after restart
	seat, err := second.Login(ctx, tb.created.Secret(board.Red))
	require.NoError(t, err)
	assert.Equal(t, tb.created.SessionID, seat.SessionID)
}

func TestRestoreLoadsStoredSessions(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	first := NewManager(WithStore(NewRedisStore(rdb, time.Hour)))
	created, err := first.CreateSession(ctx, "")
	require.NoError(t, err)

	second := NewManager(WithStore(NewRedisStore(rdb, time.Hour)))
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	seat, err := second.Login(ctx, created.Secret(board.Blue))
	require.NoError(t, err)
	assert.Equal(t, board.Blue, seat.Color)
}

type archive struct {
	mu   sync.Mutex
	recs []*SessionRecord
}

func (a *archive) SaveResult(_ context.Context, rec *SessionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func TestFinishedGameIsArchived(t *testing.T) {
	m := NewManager()
	tb := seatBoth(t, m)
	ctx := context.Background()
	arc := &archive{}
	m.AttachRepository(arc)

	// put the session into a near-final position
	b := board.New()
	b.Place(board.At(3, 0), board.Piece{Kind: board.Rook, Color: board.Blue})
	b.Place(board.At(0, 0), board.Piece{Kind: board.King, Color: board.Blue})
	b.Place(board.At(3, 5), board.Piece{Kind: board.King, Color: board.Red})
	s, err := m.load(ctx, tb.created.SessionID)
	require.NoError(t, err)
	s.mu.Lock()
	s.ctrl = turn.FromPosition(s.ctrl.Rules(), b, board.Blue)
	s.mu.Unlock()

	out, err := m.Move(ctx, tb.blue.Token, board.At(3, 0), board.At(3, 5))
	require.NoError(t, err)
	assert.True(t, out.IsWin)

	require.Len(t, arc.recs, 1)
	assert.Equal(t, StatusFinished, arc.recs[0].Status)
	require.NotNil(t, arc.recs[0].Winner)
	assert.Equal(t, board.Blue, *arc.recs[0].Winner)
	assert.Equal(t, tb.created.SessionID+"-1", arc.recs[0].GameID())

	_, err = m.Move(ctx, tb.red.Token, board.At(3, 5), board.At(3, 4))
	assert.True(t, errors.Is(err, turn.ErrGameOver))
}
