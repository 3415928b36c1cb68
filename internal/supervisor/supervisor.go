// Package supervisor periodically sweeps live sessions and ends the ones
// whose participants left, stopped moving or ran out of clock.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/presence"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/internal/store"
)

const (
	DefaultInterval   = 2 * time.Second
	DefaultStallAfter = 35 * time.Second
)

// Scanner enumerates stored sessions and exposes the store clock.
type Scanner interface {
	Scan(ctx context.Context, fn func(*session.Record)) error
	Now(ctx context.Context) (int64, error)
}

// Terminator applies a termination through the atomic transition path and
// handles the follow-up side effects.
type Terminator interface {
	Terminate(ctx context.Context, gameID string, fn store.TransitionFunc) (*session.Record, error)
}

type Config struct {
	Interval   time.Duration
	StallAfter time.Duration
}

type Supervisor struct {
	scan     Scanner
	term     Terminator
	presence presence.Checker
	cfg      Config
}

func New(sc Scanner, term Terminator, p presence.Checker, cfg Config) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = DefaultStallAfter
	}
	return &Supervisor{scan: sc, term: term, presence: p, cfg: cfg}
}

type verdict int

const (
	keep verdict = iota
	abandon
	timeout
	flag
)

func (v verdict) String() string {
	switch v {
	case abandon:
		return "abandoned"
	case timeout:
		return "timeout"
	case flag:
		return "clock"
	default:
		return "keep"
	}
}

// errStillLive aborts a termination whose condition no longer holds on the
// fresh record.
var errStillLive = errors.New("session no longer qualifies for termination")

// Run sweeps every interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	obslog.L().Info("supervisor_start",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("stall_after", s.cfg.StallAfter),
	)
	for {
		select {
		case <-ctx.Done():
			obslog.L().Info("supervisor_stop")
			return
		case <-t.C:
			s.safeTick(ctx)
		}
	}
}

func (s *Supervisor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("supervisor_panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if _, err := s.Tick(ctx); err != nil {
		obslog.L().Warn("supervisor_tick_skipped", zap.Error(err))
	}
}

// Tick performs one sweep and returns how many sessions it ended. A scan or
// presence failure skips the rest of the sweep.
func (s *Supervisor) Tick(ctx context.Context) (int, error) {
	now, err := s.scan.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("store clock: %w", err)
	}
	var live []*session.Record
	if err := s.scan.Scan(ctx, func(r *session.Record) {
		if r.Status == session.StatusActive {
			live = append(live, r)
		}
	}); err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}

	ended := 0
	for _, rec := range live {
		v, err := s.judge(ctx, rec, now)
		if err != nil {
			return ended, fmt.Errorf("presence: %w", err)
		}
		if v == keep {
			continue
		}
		out, err := s.term.Terminate(ctx, rec.GameID, s.transition(v, rec))
		switch {
		case err == nil:
			ended++
			obslog.L().Info("supervisor_terminate",
				zap.String("game_id", out.GameID),
				zap.String("reason", v.String()),
				zap.String("status", string(out.Status)),
				zap.String("winner", out.Winner),
			)
		case errors.Is(err, errStillLive), errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrNotFound):
			obslog.L().Debug("supervisor_skip", zap.String("game_id", rec.GameID), zap.String("reason", v.String()), zap.Error(err))
		default:
			obslog.L().Warn("supervisor_terminate_error", zap.String("game_id", rec.GameID), zap.String("reason", v.String()), zap.Error(err))
		}
	}
	return ended, nil
}

func (s *Supervisor) judge(ctx context.Context, rec *session.Record, now int64) (verdict, error) {
	if rec.PlayerA != "" && rec.PlayerB != "" {
		aOn, err := s.presence.IsPresent(ctx, rec.PlayerA)
		if err != nil {
			return keep, err
		}
		bOn, err := s.presence.IsPresent(ctx, rec.PlayerB)
		if err != nil {
			return keep, err
		}
		if !aOn && !bOn {
			return abandon, nil
		}
	}
	if session.Stalled(rec, now, s.cfg.StallAfter) {
		return timeout, nil
	}
	if session.ClockExpired(rec, now) {
		return flag, nil
	}
	return keep, nil
}

// transition re-checks the verdict against the record read inside the
// store transaction. An abandonment holds only while no move has landed
// since the sweep observed seen.
func (s *Supervisor) transition(v verdict, seen *session.Record) store.TransitionFunc {
	return func(cur *session.Record, now int64) (*session.Record, error) {
		if cur.Status != session.StatusActive {
			return nil, session.ErrNotActive
		}
		switch v {
		case abandon:
			if cur.MoveSeq != seen.MoveSeq {
				return nil, errStillLive
			}
			return session.Abandon(cur, now)
		case timeout:
			if !session.Stalled(cur, now, s.cfg.StallAfter) {
				return nil, errStillLive
			}
			return session.TimeOut(cur, now)
		case flag:
			if !session.ClockExpired(cur, now) {
				return nil, errStillLive
			}
			return session.FlagClock(cur, now)
		default:
			return nil, errStillLive
		}
	}
}
