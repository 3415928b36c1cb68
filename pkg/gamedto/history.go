package gamedto

import "encoding/json"

// FinishedGame is a row of a player's game history.
type FinishedGame struct {
	ID         string          `json:"id"`
	PlayerA    string          `json:"player_a"`
	PlayerB    string          `json:"player_b,omitempty"`
	Winner     string          `json:"winner,omitempty"`
	Status     string          `json:"status"`
	EndReason  string          `json:"end_reason,omitempty"`
	Speed      string          `json:"speed,omitempty"`
	MoveSeq    int64           `json:"move_seq"`
	FinalBoard json.RawMessage `json:"final_board,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	StartedAt  int64           `json:"started_at,omitempty"`
	FinishedAt int64           `json:"finished_at,omitempty"`
}
