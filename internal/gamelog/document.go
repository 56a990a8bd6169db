package gamelog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/park285/swapboard/internal/board"
)

// Document is the downloadable game log.
type Document struct {
	Meta       Meta        `json:"meta"`
	GameLog    []Entry     `json:"game_log"`
	FinalState *FinalState `json:"final_state,omitempty"`
}

type Meta struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Ruleset     string     `json:"ruleset"`
	ExportedAt  time.Time  `json:"exported_at"`
	Fields      []FieldDoc `json:"fields"`
}

// FieldDoc describes one position of a log entry.
type FieldDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type FinalState struct {
	Board     [][]string   `json:"board"`
	IsWin     bool         `json:"is_win"`
	WinPlayer *board.Color `json:"win_player"`
}

var entryFields = []FieldDoc{
	{"start_position", "origin square in file-rank form (a-h, 1-8), e.g. a7"},
	{"end_position", "destination square in file-rank form"},
	{"selected_piece", "moving piece as kind+player: p pawn, r rook, b bishop, k king; 0 blue, 1 red"},
	{"target_piece", "destination's prior occupant in the same form, or n for an empty square"},
	{"action", "move, capture or swap"},
}

// Export builds the log document. final may be nil to omit the final state.
func Export(ruleset string, records []Record, final *board.Board, winner *board.Color) *Document {
	doc := &Document{
		Meta: Meta{
			Title:       "Swapboard Game Log",
			Description: "Move log of a two-player swapboard game, oldest move first.",
			Ruleset:     ruleset,
			ExportedAt:  time.Now().UTC(),
			Fields:      entryFields,
		},
		GameLog: EncodeAll(records),
	}
	if final != nil {
		fs := &FinalState{Board: final.Grid(), IsWin: winner != nil}
		if winner != nil {
			w := *winner
			fs.WinPlayer = &w
		}
		doc.FinalState = fs
	}
	return doc
}

func (d *Document) Marshal() ([]byte, error) { return json.Marshal(d) }

// ParseDocument decodes a log and validates every entry.
func ParseDocument(raw []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode game log: %w", err)
	}
	if _, err := DecodeAll(d.GameLog); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Document) Records() ([]Record, error) { return DecodeAll(d.GameLog) }
