package boarddto

// Stable error codes carried by DomainError.
const (
	CodeInvalidSelection = "invalid_selection"
	CodeIllegalMove      = "illegal_move"
	CodeEmptyHistory     = "empty_history"
	CodeNotReady         = "not_ready"
	CodeWrongTurn        = "wrong_turn"
	CodeUnauthorized     = "unauthorized"
	CodeGameOver         = "game_over"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "board service error"
}
