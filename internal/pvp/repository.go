package pvp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS board_games (
	game_id     TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	ruleset     TEXT NOT NULL,
	result      TEXT NOT NULL,
	moves       JSONB NOT NULL,
	move_count  INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
)`

// Repository archives finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type resultRow struct {
	GameID     string
	SessionID  string
	Ruleset    string
	Result     string
	Moves      string
	MoveCount  int
	StartedAt  time.Time
	EndedAt    time.Time
	DurationMS int64
}

func rowFor(rec *SessionRecord) (resultRow, error) {
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return resultRow{}, err
	}
	row := resultRow{
		GameID:    rec.GameID(),
		SessionID: rec.ID,
		Ruleset:   rec.Ruleset,
		Moves:     string(moves),
		MoveCount: len(rec.Moves),
		StartedAt: rec.StartedAt,
		EndedAt:   rec.UpdatedAt,
	}
	if rec.Winner != nil {
		row.Result = rec.Winner.String()
	}
	if d := rec.UpdatedAt.Sub(rec.StartedAt).Milliseconds(); d > 0 {
		row.DurationMS = d
	}
	return row, nil
}

// SaveResult upserts a finished game keyed by its game id.
func (r *Repository) SaveResult(ctx context.Context, rec *SessionRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	row, err := rowFor(rec)
	if err != nil {
		return err
	}
	q := `INSERT INTO board_games (
		game_id, session_id, ruleset, result, moves, move_count,
		started_at, ended_at, duration_ms
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	  ON CONFLICT (game_id) DO UPDATE SET
		ruleset=EXCLUDED.ruleset,
		result=EXCLUDED.result,
		moves=EXCLUDED.moves,
		move_count=EXCLUDED.move_count,
		started_at=EXCLUDED.started_at,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`
	_, err = r.db.ExecContext(ctx, q,
		row.GameID, row.SessionID, row.Ruleset, row.Result, row.Moves, row.MoveCount,
		row.StartedAt, row.EndedAt, row.DurationMS,
	)
	return err
}
