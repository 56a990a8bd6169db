package pvp

import (
	"context"
	"testing"
	"time"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/gamelog"
)

func TestRowForFinishedGame(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := board.Red
	rec := &SessionRecord{
		ID:        "s9",
		Ruleset:   "frontline",
		Game:      3,
		Moves:     []gamelog.Entry{{"a2", "a3", "p0", "n", "move"}, {"a7", "a6", "p1", "n", "move"}},
		Status:    StatusFinished,
		Winner:    &w,
		StartedAt: start,
		UpdatedAt: start.Add(90 * time.Second),
	}
	row, err := rowFor(rec)
	if err != nil {
		t.Fatalf("rowFor: %v", err)
	}
	if row.GameID != "s9-3" || row.Result != "red" || row.MoveCount != 2 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.DurationMS != 90000 {
		t.Fatalf("duration = %d", row.DurationMS)
	}
	if row.Moves != `[["a2","a3","p0","n","move"],["a7","a6","p1","n","move"]]` {
		t.Fatalf("moves = %s", row.Moves)
	}
}

func TestRowForClampsNegativeDuration(t *testing.T) {
	now := time.Now()
	row, err := rowFor(&SessionRecord{ID: "x", Game: 1, StartedAt: now, UpdatedAt: now.Add(-time.Second)})
	if err != nil {
		t.Fatalf("rowFor: %v", err)
	}
	if row.DurationMS != 0 || row.Result != "" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository(context.Background(), " "); err == nil {
		t.Fatalf("expected error")
	}
	var r *Repository
	if err := r.SaveResult(context.Background(), &SessionRecord{}); err != nil {
		t.Fatalf("nil repository should be a no-op: %v", err)
	}
}
