package session

import "time"

// Stalled reports whether an active session has seen no write for longer
// than ceiling.
func Stalled(r *Record, now int64, ceiling time.Duration) bool {
	if r == nil || r.Status != StatusActive {
		return false
	}
	last := r.UpdatedAt
	if last == 0 {
		last = r.StartedAt
	}
	if last == 0 {
		return false
	}
	return time.Duration(now-last)*time.Second > ceiling
}

// ClockExpired reports whether the player on turn has overrun their clock.
func ClockExpired(r *Record, now int64) bool {
	if r == nil || r.Status != StatusActive || r.CurrentTurn == "" {
		return false
	}
	return r.Remaining(r.CurrentTurn, now) <= 0
}

// Abandon ends an active session with no winner.
func Abandon(cur *Record, now int64) (*Record, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	if cur.Status != StatusActive {
		return nil, ErrNotActive
	}
	next := cur.Clone()
	next.finish(StatusAbandoned, "", ReasonAbandoned, now)
	return next, nil
}

// TimeOut ends a stalled session in favour of the player not on turn. The
// clock of the player on turn is charged for the time spent.
func TimeOut(cur *Record, now int64) (*Record, error) {
	return forfeitTurn(cur, now, ReasonTimeout)
}

// FlagClock ends a session whose player on turn ran out of time.
func FlagClock(cur *Record, now int64) (*Record, error) {
	return forfeitTurn(cur, now, ReasonClock)
}

func forfeitTurn(cur *Record, now int64, reason EndReason) (*Record, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	if cur.Status != StatusActive {
		return nil, ErrNotActive
	}
	next := cur.Clone()
	loser := next.CurrentTurn
	next.setClock(loser, next.Remaining(loser, now))
	if reason == ReasonClock {
		next.setClock(loser, 0)
	}
	next.finish(StatusCompleted, next.Opponent(loser), reason, now)
	return next, nil
}
