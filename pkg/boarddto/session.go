package boarddto

// Position is a board coordinate; row 0 is Blue's home rank.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Piece struct {
	At    Position `json:"at"`
	Code  string   `json:"code"`
	Kind  string   `json:"kind"`
	Color string   `json:"color"`
}

// Snapshot is the full authoritative game state. It is always complete,
// never a diff.
type Snapshot struct {
	SessionID  string     `json:"session_id,omitempty"`
	Ruleset    string     `json:"ruleset"`
	Board      [][]string `json:"board"`
	Pieces     []Piece    `json:"pieces"`
	Turn       string     `json:"turn"`
	LastMove   *Move      `json:"last_move,omitempty"`
	IsOver     bool       `json:"is_over"`
	Winner     *string    `json:"winner,omitempty"`
	WinMessage string     `json:"win_message,omitempty"`
	MoveCount  int        `json:"move_count"`
	Ready      bool       `json:"ready"`
	Seat       string     `json:"seat,omitempty"`
}
