package gamelog

import (
	"errors"
	"fmt"

	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/rules"
)

var ErrInvalidRecord = errors.New("invalid move record")

// Record is one applied action. Target is the zero Piece when the
// destination was empty.
type Record struct {
	From   board.Coord
	To     board.Coord
	Piece  board.Piece
	Target board.Piece
	Action rules.Action
}

// Entry is the compact notation of a Record:
// [from, to, piece, target, action], e.g. ["a7","a6","p0","n","move"].
type Entry [5]string

func (r Record) Encode() Entry {
	return Entry{r.From.Square(), r.To.Square(), r.Piece.Code(), r.Target.Code(), r.Action.String()}
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s-%s %s", r.Piece.Code(), r.From.Square(), r.To.Square(), r.Action)
}

// Decode parses an Entry and checks that the action agrees with the pieces.
func Decode(e Entry) (Record, error) {
	var (
		r   Record
		err error
	)
	if r.From, err = board.ParseSquare(e[0]); err != nil {
		return Record{}, fmt.Errorf("%w: from: %v", ErrInvalidRecord, err)
	}
	if r.To, err = board.ParseSquare(e[1]); err != nil {
		return Record{}, fmt.Errorf("%w: to: %v", ErrInvalidRecord, err)
	}
	if r.Piece, err = board.ParseCode(e[2]); err != nil {
		return Record{}, fmt.Errorf("%w: piece: %v", ErrInvalidRecord, err)
	}
	if r.Target, err = board.ParseCode(e[3]); err != nil {
		return Record{}, fmt.Errorf("%w: target: %v", ErrInvalidRecord, err)
	}
	if r.Action, err = rules.ParseAction(e[4]); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (r Record) validate() error {
	if r.Piece.IsZero() {
		return fmt.Errorf("%w: no moving piece", ErrInvalidRecord)
	}
	if r.From == r.To {
		return fmt.Errorf("%w: origin equals destination", ErrInvalidRecord)
	}
	want := rules.ActionCapture
	switch {
	case r.Target.IsZero():
		want = rules.ActionMove
	case r.Target.Color == r.Piece.Color:
		want = rules.ActionSwap
	}
	if r.Action != want {
		return fmt.Errorf("%w: action %s does not match target %s", ErrInvalidRecord, r.Action, r.Target.Code())
	}
	return nil
}

func EncodeAll(records []Record) []Entry {
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = r.Encode()
	}
	return out
}

func DecodeAll(entries []Entry) ([]Record, error) {
	out := make([]Record, len(entries))
	for i, e := range entries {
		r, err := Decode(e)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// History is the append-only move record; only the tail can be removed.
type History struct {
	records []Record
}

func (h *History) Append(r Record) { h.records = append(h.records, r) }

// Pop removes and returns the newest record.
func (h *History) Pop() (Record, bool) {
	n := len(h.records)
	if n == 0 {
		return Record{}, false
	}
	r := h.records[n-1]
	h.records = h.records[:n-1]
	return r, true
}

func (h *History) Last() (Record, bool) {
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

func (h *History) Len() int { return len(h.records) }

// Records returns a copy of the log, oldest first.
func (h *History) Records() []Record { return append([]Record(nil), h.records...) }

func (h *History) Reset() { h.records = nil }
