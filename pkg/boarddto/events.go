package boarddto

import "encoding/json"

// Server-pushed event types.
const (
	EventBoardUpdate = "board-update"
	EventPlayerReady = "player-ready"
	EventPlayerLeft  = "player-left"
)

// Websocket request types.
const (
	RequestInitializeSession = "initialize_session"
	RequestSelect            = "select"
	RequestMove              = "move"
	RequestUndo              = "undo"
	RequestNewGame           = "new_game"
)

// FrameReply is the type of a response frame.
const FrameReply = "reply"

// Event is pushed to a seat outside any request.
type Event struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Color    string    `json:"color,omitempty"`
}

// Frame is the websocket envelope. Requests carry an ID that the reply
// echoes; pushed events have T set to the event type and no ID.
type Frame struct {
	T     string          `json:"t"`
	ID    string          `json:"id,omitempty"`
	M     json.RawMessage `json:"m,omitempty"`
	OK    *bool           `json:"ok,omitempty"`
	Error *DomainError    `json:"error,omitempty"`
}
