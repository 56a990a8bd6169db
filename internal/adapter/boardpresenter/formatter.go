package boardpresenter

import (
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/msgcat"
	"github.com/park285/swapboard/internal/turn"
	"github.com/park285/swapboard/pkg/boarddto"
)

// Formatter renders DTOs together with catalog text. A nil catalog falls
// back to built-in English strings.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

func (f *Formatter) catalog() *msgcat.Catalog {
	if f == nil {
		return nil
	}
	return f.cat
}

func (f *Formatter) WinMessage(winner board.Color) string {
	return f.catalog().Text("game.win", map[string]string{"Winner": winner.Title()}, winner.Title()+" Win!")
}

// Reason renders error.<code>; data may be nil for fixed texts.
func (f *Formatter) Reason(code string, data map[string]string, fallback string) string {
	if data == nil {
		data = map[string]string{}
	}
	return f.catalog().Text("error."+code, data, fallback)
}

func (f *Formatter) LoginMessage(ok bool, color board.Color) string {
	if !ok {
		return f.catalog().Text("login.failure", nil, "Wrong password.")
	}
	return f.catalog().Text("login.success", map[string]string{"Color": color.Title()}, "Seated as "+color.Title()+".")
}

func (f *Formatter) Snapshot(s turn.Snapshot) *boarddto.Snapshot {
	dto := ToSnapshot(s)
	if s.Winner != nil {
		dto.WinMessage = f.WinMessage(*s.Winner)
	}
	return dto
}

func (f *Formatter) Move(out turn.Outcome) *boarddto.MoveResponse {
	resp := &boarddto.MoveResponse{
		Success:    true,
		ActionKind: out.Record.Action.String(),
		Turn:       out.Turn.String(),
		IsWin:      out.IsWin,
		Move:       ToMove(out.Record),
	}
	if out.IsWin {
		resp.WinMessage = f.WinMessage(out.Winner)
	}
	return resp
}

// Select converts a successful select result.
func (f *Formatter) Select(res turn.SelectResult) *boarddto.SelectResponse {
	resp := &boarddto.SelectResponse{Valid: true, Deselected: res.Deselected, ValidDestinations: []boarddto.Position{}}
	if res.Selection != nil {
		resp.ValidDestinations = ToPositions(res.Selection.Destinations)
	}
	if res.Outcome != nil {
		resp.Move = f.Move(*res.Outcome)
	}
	return resp
}
