package session

import (
	"strings"

	"github.com/EoCiMrEo/TikTacToeArena/internal/gomoku"
)

// ApplyMove validates a move by playerID at cell against cur and returns the
// next record. cur is never modified; on rejection the returned error is one
// of the session rejection values. now must come from the store clock.
func ApplyMove(cur *Record, playerID string, cell int, now int64) (*Record, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	if cur.Status != StatusActive {
		return nil, ErrNotActive
	}
	if playerID == "" || playerID != cur.CurrentTurn {
		return nil, ErrNotYourTurn
	}
	if !gomoku.InBounds(cell) {
		return nil, ErrBadPosition
	}
	if cur.Board[cell] != gomoku.Empty {
		return nil, ErrCellTaken
	}

	next := cur.Clone()
	next.Board[cell] = next.markOf(playerID)

	// A flag fall ends the game before the placed mark is evaluated.
	if flagged := next.chargeClock(playerID, now); flagged {
		next.finish(StatusCompleted, next.Opponent(playerID), ReasonClock, now)
	} else if line := next.Board.WinningLine(cell); line != nil {
		next.finish(StatusCompleted, playerID, ReasonWin, now)
		next.WinningLine = line
	} else if next.Board.Full() {
		next.finish(StatusCompleted, "", ReasonDraw, now)
	} else {
		next.CurrentTurn = next.Opponent(playerID)
	}

	next.MoveSeq++
	next.UpdatedAt = now
	next.LastMoveAt = now
	return next, nil
}

// chargeClock deducts the time spent on this turn from the mover and credits
// the increment. It reports true when the clock ran out; no increment is
// credited in that case and the clock stays at zero.
func (r *Record) chargeClock(playerID string, now int64) bool {
	left := r.Remaining(playerID, now)
	if left <= 0 {
		r.setClock(playerID, 0)
		return true
	}
	r.setClock(playerID, left+r.Settings.IncrementSeconds)
	return false
}

// Attach seats the second participant of a waiting session and starts it.
func Attach(cur *Record, playerID string, now int64) (*Record, error) {
	if cur == nil {
		return nil, ErrNotFound
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" || playerID == cur.PlayerA {
		return nil, ErrInvalidArgs
	}
	if cur.Status != StatusWaiting || cur.PlayerB != "" {
		return nil, ErrNotWaiting
	}
	next := cur.Clone()
	next.PlayerB = playerID
	next.start(now)
	return next, nil
}
