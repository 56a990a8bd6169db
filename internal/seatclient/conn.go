package seatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/swapboard/pkg/boarddto"
)

var ErrDisconnected = errors.New("seat connection closed")

// RequestError is a reply with ok=false.
type RequestError struct {
	Type   string
	Domain boarddto.DomainError
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s rejected: %s (%s)", e.Type, e.Domain.Message, e.Domain.Code)
}

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type EventCallback func(ev boarddto.Event)

type StateCallback func(state State)

type eventEntry struct {
	id       int
	callback EventCallback
}

type stateEntry struct {
	id       int
	callback StateCallback
}

// Conn is a seat's websocket. Requests are correlated with replies by id;
// pushed events go to the registered callbacks.
type Conn struct {
	wsURL string
	token string

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	pending map[string]chan boarddto.Frame
	nextID  atomic.Uint64

	cbM      sync.RWMutex
	eventCbs []eventEntry
	stateCbs []stateEntry

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewConn(wsURL, token string, maxReconnectAttempts int) *Conn {
	return &Conn{
		wsURL:                wsURL,
		token:                token,
		state:                StateDisconnected,
		pending:              make(map[string]chan boarddto.Frame),
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         15 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(StateFailed)
		return err
	}
	return nil
}

func (c *Conn) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.Dial(dialCtx, c.wsURL, &websocket.DialOptions{HTTPHeader: hdr})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
	return nil
}

func (c *Conn) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var f boarddto.Frame
		if err := wsjson.Read(c.rootCtx, conn, &f); err != nil {
			c.dropConn(conn)
			if c.isStopping() {
				return
			}
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}
		if f.T == boarddto.FrameReply {
			c.deliver(f)
			continue
		}
		var ev boarddto.Event
		if len(f.M) > 0 {
			if err := json.Unmarshal(f.M, &ev); err != nil {
				continue
			}
		}
		if ev.Type == "" {
			ev.Type = f.T
		}
		c.cbM.RLock()
		callbacks := make([]eventEntry, len(c.eventCbs))
		copy(callbacks, c.eventCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			entry.callback(ev)
		}
	}
}

func (c *Conn) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Conn) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 {
		c.setState(StateFailed)
		return
	}
	c.setState(StateReconnecting)
	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			if err := c.dial(c.rootCtx); err == nil {
				return
			}
		}
		c.setState(StateFailed)
	}()
}

func (c *Conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// dropConn forgets conn and fails every request still waiting on it.
func (c *Conn) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	pending := c.pending
	c.pending = make(map[string]chan boarddto.Frame)
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
	_ = conn.Close(websocket.StatusGoingAway, "reconnect")
}

func (c *Conn) deliver(f boarddto.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.mu.Unlock()
	if ok {
		ch <- f
	}
}

// Request sends one request frame and waits for its reply. out may be nil.
func (c *Conn) Request(ctx context.Context, typ string, in, out any) error {
	var payload json.RawMessage
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		payload = raw
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan boarddto.Frame, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := wsjson.Write(ctx, conn, boarddto.Frame{T: typ, ID: id, M: payload}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("write %s: %w", typ, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case f, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if f.OK == nil || !*f.OK {
			re := &RequestError{Type: typ}
			if f.Error != nil {
				re.Domain = *f.Error
			}
			return re
		}
		if out != nil && len(f.M) > 0 {
			if err := json.Unmarshal(f.M, out); err != nil {
				return fmt.Errorf("decode %s reply: %w", typ, err)
			}
		}
		return nil
	}
}

func (c *Conn) Initialize(ctx context.Context) (*boarddto.Snapshot, error) {
	var resp boarddto.SessionResponse
	if err := c.Request(ctx, boarddto.RequestInitializeSession, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

func (c *Conn) Select(ctx context.Context, at boarddto.Position) (*boarddto.SelectResponse, error) {
	var resp boarddto.SelectResponse
	if err := c.Request(ctx, boarddto.RequestSelect, boarddto.SelectRequest{Position: at}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Conn) Move(ctx context.Context, from, to boarddto.Position) (*boarddto.MoveResponse, error) {
	var resp boarddto.MoveResponse
	if err := c.Request(ctx, boarddto.RequestMove, boarddto.MoveRequest{From: from, To: to}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Conn) Undo(ctx context.Context) (*boarddto.Snapshot, error) {
	var resp boarddto.UndoResponse
	if err := c.Request(ctx, boarddto.RequestUndo, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

func (c *Conn) NewGame(ctx context.Context) (*boarddto.Snapshot, error) {
	var resp boarddto.NewGameResponse
	if err := c.Request(ctx, boarddto.RequestNewGame, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

func (c *Conn) OnEvent(cb EventCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	id := len(c.eventCbs) + 1
	c.eventCbs = append(c.eventCbs, eventEntry{id: id, callback: cb})
	return id
}

func (c *Conn) RemoveEventCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.eventCbs {
		if cb.id == id {
			c.eventCbs = append(c.eventCbs[:i], c.eventCbs[i+1:]...)
			break
		}
	}
}

func (c *Conn) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	id := len(c.stateCbs) + 1
	c.stateCbs = append(c.stateCbs, stateEntry{id: id, callback: cb})
	return id
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		entry.callback(state)
	}
}

func (c *Conn) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if conn := c.current(); conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if c.rootCancel != nil {
		c.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Conn) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
