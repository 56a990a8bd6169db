package pvp

import (
	"context"
	"time"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
	"github.com/park285/swapboard/pkg/boarddto"
)

var (
	ErrUnauthorized    = errf("unauthorized seat token")
	ErrNotReady        = errf("both seats must be connected")
	ErrWrongTurn       = errf("not your turn")
	ErrSessionNotFound = errf("session not found or expired")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Status is the lifecycle of the current game inside a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Sink receives events for one connected seat. Send must not block; it
// reports false when the event was dropped.
type Sink interface {
	Send(ev boarddto.Event) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev boarddto.Event) bool

func (f SinkFunc) Send(ev boarddto.Event) bool { return f(ev) }

// Evicter is implemented by sinks that can be shut down when a newer
// connection takes over their seat. Evict must not block.
type Evicter interface {
	Evict()
}

type connKey struct{}

// WithConn scopes ctx to the connection connID. Mutating calls made with
// such a ctx are rejected once connID no longer holds the seat.
func WithConn(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connKey{}, connID)
}

func connFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(connKey{}).(string)
	return id, ok
}

// Seat is the result of a successful login.
type Seat struct {
	Token     string
	SessionID string
	Color     board.Color
}

// Created carries the one-time plain secrets of a new session, indexed by color.
type Created struct {
	SessionID string
	Ruleset   string
	Secrets   [2]string
}

func (c *Created) Secret(color board.Color) string { return c.Secrets[color] }

// SessionRecord is the persisted form of a GameSession. Secrets and tokens
// are stored only as hashes.
type SessionRecord struct {
	ID        string          `json:"id"`
	Ruleset   string          `json:"ruleset"`
	Game      int             `json:"game"`
	Seats     [2]SeatRecord   `json:"seats"`
	Moves     []gamelog.Entry `json:"moves"`
	Status    Status          `json:"status"`
	Winner    *board.Color    `json:"winner,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	StartedAt time.Time       `json:"started_at"`
}

type SeatRecord struct {
	Color       board.Color `json:"color"`
	SecretHash  string      `json:"secret_hash"`
	TokenDigest string      `json:"token_digest,omitempty"`
}

// GameID names one game of a session; NewGame starts the next number.
func (r *SessionRecord) GameID() string { return gameID(r.ID, r.Game) }

// TokenRef is what a token digest resolves to.
type TokenRef struct {
	SessionID string      `json:"session_id"`
	Color     board.Color `json:"color"`
}

// Store persists session records and the token index.
type Store interface {
	Save(ctx context.Context, rec *SessionRecord) error
	Load(ctx context.Context, id string) (*SessionRecord, error)
	List(ctx context.Context) ([]string, error)
	BindToken(ctx context.Context, digest string, ref TokenRef) error
	LookupToken(ctx context.Context, digest string) (TokenRef, bool, error)
}

// Archiver stores finished games.
type Archiver interface {
	SaveResult(ctx context.Context, rec *SessionRecord) error
}
