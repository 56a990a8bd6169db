package boarddto

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Color     string `json:"color,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

type SelectRequest struct {
	Position Position `json:"position"`
}

// SelectResponse answers select(position). A second click on a legal
// destination applies the move and fills Move.
type SelectResponse struct {
	Valid             bool          `json:"valid"`
	ValidDestinations []Position    `json:"valid_destinations"`
	Deselected        bool          `json:"deselected,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	Move              *MoveResponse `json:"move,omitempty"`
}

type MoveRequest struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

type MoveResponse struct {
	Success    bool   `json:"success"`
	ActionKind string `json:"action_kind,omitempty"`
	Turn       string `json:"turn,omitempty"`
	IsWin      bool   `json:"is_win,omitempty"`
	WinMessage string `json:"win_message,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Move       *Move  `json:"last_move,omitempty"`
}

type UndoResponse struct {
	Success  bool      `json:"success"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

type NewGameResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

type SessionResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}
