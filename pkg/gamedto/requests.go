package gamedto

// SettingsRequest is the optional game configuration supplied at creation.
// Zero values fall back to the speed tier defaults.
type SettingsRequest struct {
	Speed            string `json:"speed,omitempty"`
	InitialSeconds   int64  `json:"initial_seconds,omitempty"`
	IncrementSeconds int64  `json:"increment_seconds,omitempty"`
}

type CreateGameRequest struct {
	PlayerA  string           `json:"player_a"`
	PlayerB  string           `json:"player_b,omitempty"`
	Settings *SettingsRequest `json:"settings,omitempty"`
}

type MoveRequest struct {
	PlayerID string `json:"player_id"`
	Position *int   `json:"position"`
}

type JoinRequest struct {
	PlayerID string `json:"player_id"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
