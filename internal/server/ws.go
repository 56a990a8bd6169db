package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/swapboard/internal/adapter/boardpresenter"
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/pvp"
	"github.com/park285/swapboard/pkg/boarddto"
)

const (
	wsSendBuffer   = 64
	wsPingInterval = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// wsConn is one seat connection. Frames are queued on send and written by a
// single writer goroutine.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	evicted   chan struct{}
	evictOnce sync.Once
}

// Evict closes the connection after its seat was taken over.
func (c *wsConn) Evict() {
	c.evictOnce.Do(func() { close(c.evicted) })
}

// Send queues a pushed event; it drops the event when the queue is full.
func (c *wsConn) Send(ev boarddto.Event) bool {
	raw, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	frame, err := json.Marshal(boarddto.Frame{T: ev.Type, M: raw})
	if err != nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// reply queues the answer to request id. Replies wait for queue space
// instead of being dropped.
func (c *wsConn) reply(ctx context.Context, id string, data any, derr *boarddto.DomainError) {
	ok := derr == nil
	f := boarddto.Frame{T: boarddto.FrameReply, ID: id, OK: &ok, Error: derr}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			obslog.L().Error("ws_reply_encode_error", zap.Error(err))
			return
		}
		f.M = raw
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	case <-ctx.Done():
	}
}

func (c *wsConn) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	ping := time.NewTicker(wsPingInterval)
	defer func() {
		ping.Stop()
		cancel()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.evicted:
			_ = c.conn.Close(websocket.StatusPolicyViolation, "seat taken over")
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := seatToken(r)
	probe, err := s.mgr.Snapshot(r.Context(), token)
	if err != nil {
		s.writeError(w, err, board.Blue)
		return
	}
	seat, _ := board.ParseColor(probe.Seat)

	opts := &websocket.AcceptOptions{OriginPatterns: s.origins}
	if len(s.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{conn: conn, send: make(chan []byte, wsSendBuffer), evicted: make(chan struct{})}
	connID, _, err := s.mgr.Connect(ctx, token, c)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}
	defer func() {
		s.mgr.Disconnect(context.Background(), token, connID)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	ctx = pvp.WithConn(ctx, connID)
	go c.writeLoop(ctx, cancel)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}
		var f boarddto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			_, de := s.domainError(errBadRequest, seat)
			c.reply(ctx, "", nil, &de)
			continue
		}
		s.handleFrame(ctx, c, token, seat, f)
	}
}

func (s *Server) handleFrame(ctx context.Context, c *wsConn, token string, seat board.Color, f boarddto.Frame) {
	data, err := s.dispatch(ctx, token, f)
	if err == nil {
		c.reply(ctx, f.ID, data, nil)
		return
	}
	_, de := s.domainError(err, seat)
	c.reply(ctx, f.ID, failure(f.T, de.Message), &de)
}

func (s *Server) dispatch(ctx context.Context, token string, f boarddto.Frame) (any, error) {
	switch f.T {
	case boarddto.RequestInitializeSession:
		snap, err := s.mgr.Snapshot(ctx, token)
		if err != nil {
			return nil, err
		}
		return boarddto.SessionResponse{Snapshot: snap}, nil

	case boarddto.RequestSelect:
		var req boarddto.SelectRequest
		if err := unmarshalPayload(f.M, &req); err != nil {
			return nil, err
		}
		at, err := boardpresenter.FromPosition(req.Position)
		if err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		res, err := s.mgr.Select(ctx, token, at)
		if err != nil {
			return nil, err
		}
		return s.format.Select(res), nil

	case boarddto.RequestMove:
		var req boarddto.MoveRequest
		if err := unmarshalPayload(f.M, &req); err != nil {
			return nil, err
		}
		from, err1 := boardpresenter.FromPosition(req.From)
		to, err2 := boardpresenter.FromPosition(req.To)
		if err := errors.Join(err1, err2); err != nil {
			return nil, errors.Join(errBadRequest, err)
		}
		out, err := s.mgr.Move(ctx, token, from, to)
		if err != nil {
			return nil, err
		}
		return s.format.Move(out), nil

	case boarddto.RequestUndo:
		snap, err := s.mgr.Undo(ctx, token)
		if err != nil {
			return nil, err
		}
		return boarddto.UndoResponse{Success: true, Snapshot: snap}, nil

	case boarddto.RequestNewGame:
		snap, err := s.mgr.NewGame(ctx, token)
		if err != nil {
			return nil, err
		}
		return boarddto.NewGameResponse{Snapshot: snap}, nil
	}
	return nil, errBadRequest
}

// failure is the negative form of each request's response body.
func failure(typ, reason string) any {
	switch typ {
	case boarddto.RequestSelect:
		return boarddto.SelectResponse{ValidDestinations: []boarddto.Position{}, Reason: reason}
	case boarddto.RequestMove:
		return boarddto.MoveResponse{Reason: reason}
	case boarddto.RequestUndo:
		return boarddto.UndoResponse{Reason: reason}
	}
	return nil
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadRequest
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
