package session

import (
	"github.com/EoCiMrEo/TikTacToeArena/internal/gomoku"
)

// Status represents a game session lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further moves can be accepted.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusAbandoned }

// EndReason records why a session reached a terminal state.
type EndReason string

const (
	ReasonWin       EndReason = "win"
	ReasonDraw      EndReason = "draw"
	ReasonClock     EndReason = "clock"
	ReasonTimeout   EndReason = "timeout"
	ReasonAbandoned EndReason = "abandoned"
)

// Settings is captured at creation and never changes afterwards.
type Settings struct {
	InitialSeconds   int64  `json:"initial_seconds"`
	IncrementSeconds int64  `json:"increment_seconds"`
	Speed            string `json:"speed"`
}

// Record is the authoritative state of one live game. All timestamps are
// epoch seconds taken from the store clock.
type Record struct {
	GameID      string       `json:"game_id"`
	PlayerA     string       `json:"player_a"`
	PlayerB     string       `json:"player_b,omitempty"`
	CurrentTurn string       `json:"current_turn,omitempty"`
	Board       gomoku.Board `json:"board"`
	Status      Status       `json:"status"`
	Winner      string       `json:"winner,omitempty"`
	WinningLine []int        `json:"winning_line"`
	MoveSeq     int64        `json:"move_seq"`
	Settings    Settings     `json:"settings"`
	ClockA      int64        `json:"clock_a"`
	ClockB      int64        `json:"clock_b"`
	LastMoveAt  int64        `json:"last_move_at"`
	CreatedAt   int64        `json:"created_at"`
	StartedAt   int64        `json:"started_at,omitempty"`
	UpdatedAt   int64        `json:"updated_at"`
	EndReason   EndReason    `json:"end_reason,omitempty"`
}

// New builds the initial record. The session starts active when both
// participants are known, otherwise it waits for a second player.
func New(gameID, playerA, playerB string, settings Settings, now int64) *Record {
	r := &Record{
		GameID:      gameID,
		PlayerA:     playerA,
		PlayerB:     playerB,
		Status:      StatusWaiting,
		WinningLine: []int{},
		Settings:    settings,
		ClockA:      settings.InitialSeconds,
		ClockB:      settings.InitialSeconds,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if playerB != "" {
		r.start(now)
	}
	return r
}

// Clone returns a deep copy; transitions only ever mutate clones.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.WinningLine = append([]int{}, r.WinningLine...)
	return &c
}

func (r *Record) start(now int64) {
	r.Status = StatusActive
	r.CurrentTurn = r.PlayerA
	r.StartedAt = now
	r.LastMoveAt = now
	r.UpdatedAt = now
}

// Participant reports whether id plays in this session.
func (r *Record) Participant(id string) bool {
	return id != "" && (id == r.PlayerA || id == r.PlayerB)
}

// Opponent returns the other participant, or "" when id is not playing.
func (r *Record) Opponent(id string) string {
	switch id {
	case r.PlayerA:
		return r.PlayerB
	case r.PlayerB:
		return r.PlayerA
	default:
		return ""
	}
}

func (r *Record) markOf(id string) gomoku.Mark {
	if id == r.PlayerA {
		return gomoku.MarkA
	}
	return gomoku.MarkB
}

// Clock returns the stored remaining seconds for a participant.
func (r *Record) Clock(id string) int64 {
	if id == r.PlayerA {
		return r.ClockA
	}
	return r.ClockB
}

func (r *Record) setClock(id string, v int64) {
	if id == r.PlayerA {
		r.ClockA = v
		return
	}
	r.ClockB = v
}

// turnStartedAt is the basis for elapsed-time deduction.
func (r *Record) turnStartedAt() int64 {
	if r.LastMoveAt != 0 {
		return r.LastMoveAt
	}
	return r.StartedAt
}

// Remaining is the clock of id as it stands at now, assuming id is on turn.
func (r *Record) Remaining(id string, now int64) int64 {
	elapsed := now - r.turnStartedAt()
	if elapsed < 0 {
		elapsed = 0
	}
	left := r.Clock(id) - elapsed
	if left < 0 {
		return 0
	}
	return left
}

func (r *Record) finish(status Status, winner string, reason EndReason, now int64) {
	r.Status = status
	r.Winner = winner
	r.CurrentTurn = ""
	r.WinningLine = []int{}
	r.EndReason = reason
	r.UpdatedAt = now
}
