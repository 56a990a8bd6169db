package boarddto

// Move is one applied action. Notation is the compact log entry.
type Move struct {
	From     Position  `json:"from"`
	To       Position  `json:"to"`
	Piece    string    `json:"piece"`
	Target   string    `json:"target"`
	Action   string    `json:"action"`
	Notation [5]string `json:"notation"`
}
