// Package engine is the game session service: it validates requests, runs
// state machine transitions through the store and fans results out to the
// event bus and the durable record store.
package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/notify"
	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/records"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/internal/store"
	"github.com/EoCiMrEo/TikTacToeArena/internal/tiers"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

const sideEffectTimeout = 5 * time.Second

type Engine struct {
	store *store.Store
	tiers *tiers.Catalog
	sink  notify.Sink
	repo  records.Repository
	newID func() string
}

type CreateRequest struct {
	PlayerA  string
	PlayerB  string
	Settings *gamedto.SettingsRequest
}

func New(st *store.Store, catalog *tiers.Catalog) *Engine {
	return &Engine{store: st, tiers: catalog, sink: nopSink{}, newID: uuid.NewString}
}

// AttachRepository wires the durable record store. Without one, history
// queries return empty lists.
func (e *Engine) AttachRepository(r records.Repository) {
	if e != nil {
		e.repo = r
	}
}

func (e *Engine) AttachSink(s notify.Sink) {
	if e != nil && s != nil {
		e.sink = s
	}
}

// Ping reports whether the session store is reachable.
func (e *Engine) Ping(ctx context.Context) error { return e.store.Ping(ctx) }

// Create starts a new session. With both players known it is active at once
// and game_start is published; otherwise it waits for Join.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*session.Record, error) {
	a := strings.TrimSpace(req.PlayerA)
	b := strings.TrimSpace(req.PlayerB)
	if a == "" || a == b {
		return nil, session.ErrInvalidArgs
	}
	settings, err := e.tiers.Resolve(req.Settings)
	if err != nil {
		return nil, err
	}
	id := e.newID()
	rec, err := e.store.Create(ctx, func(now int64) *session.Record {
		return session.New(id, a, b, settings, now)
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_create",
		zap.String("game_id", rec.GameID),
		zap.String("player_a", rec.PlayerA),
		zap.String("player_b", rec.PlayerB),
		zap.String("status", string(rec.Status)),
		zap.String("speed", rec.Settings.Speed),
	)
	e.index(ctx, rec, a, b)

	sctx, cancel := detached(ctx)
	defer cancel()
	if e.repo != nil {
		if err := e.repo.InsertGame(sctx, rec); err != nil {
			obslog.L().Error("game_record_insert_error", zap.String("game_id", rec.GameID), zap.Error(err))
		}
	}
	if rec.Status == session.StatusActive {
		e.sink.Publish(sctx, notify.EventStart, rec)
	}
	return rec, nil
}

// Join seats playerID as the second participant of a waiting session.
func (e *Engine) Join(ctx context.Context, gameID, playerID string) (*session.Record, error) {
	playerID = strings.TrimSpace(playerID)
	rec, err := e.store.Transition(ctx, gameID, func(cur *session.Record, now int64) (*session.Record, error) {
		return session.Attach(cur, playerID, now)
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_join", zap.String("game_id", rec.GameID), zap.String("player_b", rec.PlayerB))
	e.index(ctx, rec, rec.PlayerB)

	sctx, cancel := detached(ctx)
	defer cancel()
	if e.repo != nil {
		if err := e.repo.MarkStarted(sctx, rec); err != nil {
			obslog.L().Error("game_record_start_error", zap.String("game_id", rec.GameID), zap.Error(err))
		}
	}
	e.sink.Publish(sctx, notify.EventStart, rec)
	return rec, nil
}

// SubmitMove applies a move by playerID at cell. Rejections leave the
// session untouched and publish nothing.
func (e *Engine) SubmitMove(ctx context.Context, gameID, playerID string, cell int) (*session.Record, error) {
	playerID = strings.TrimSpace(playerID)
	rec, err := e.store.Transition(ctx, gameID, func(cur *session.Record, now int64) (*session.Record, error) {
		return session.ApplyMove(cur, playerID, cell, now)
	})
	if err != nil {
		var de gamedto.DomainError
		if errors.As(err, &de) && !de.Retryable {
			obslog.L().Debug("game_move_rejected", zap.String("game_id", gameID), zap.String("player_id", playerID), zap.String("code", de.Code))
		}
		return nil, err
	}
	obslog.L().Info("game_move",
		zap.String("game_id", rec.GameID),
		zap.String("player_id", playerID),
		zap.Int("cell", cell),
		zap.Int64("move_seq", rec.MoveSeq),
		zap.String("status", string(rec.Status)),
	)

	sctx, cancel := detached(ctx)
	defer cancel()
	e.sink.Publish(sctx, notify.EventUpdate, rec)
	if rec.Status.Terminal() {
		e.finalize(sctx, rec)
	}
	return rec, nil
}

func (e *Engine) Get(ctx context.Context, gameID string) (*session.Record, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, session.ErrNotFound
	}
	return e.store.Get(ctx, gameID)
}

// ActiveByUser lists the user's live sessions, most recently updated first.
// Index entries whose record expired are pruned.
func (e *Engine) ActiveByUser(ctx context.Context, userID string) ([]*session.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, session.ErrInvalidArgs
	}
	ids, err := e.store.GamesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := []*session.Record{}
	var stale []string
	for _, id := range ids {
		rec, err := e.store.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !rec.Status.Terminal() {
			list = append(list, rec)
		}
	}
	if len(stale) > 0 {
		if err := e.store.RemoveFromIndex(ctx, userID, stale...); err != nil {
			obslog.L().Warn("game_index_prune_error", zap.String("user_id", userID), zap.Error(err))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt != list[j].UpdatedAt {
			return list[i].UpdatedAt > list[j].UpdatedAt
		}
		return list[i].GameID < list[j].GameID
	})
	return list, nil
}

// Recent returns the user's finished games from the durable record store.
func (e *Engine) Recent(ctx context.Context, userID string, limit int) ([]gamedto.FinishedGame, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, session.ErrInvalidArgs
	}
	if e.repo == nil {
		return []gamedto.FinishedGame{}, nil
	}
	return e.repo.RecentByPlayer(ctx, userID, limit)
}

// Terminate runs a supervisor verdict through the store. Only the caller
// whose transition produced the terminal state mirrors it and publishes
// game_over.
func (e *Engine) Terminate(ctx context.Context, gameID string, fn store.TransitionFunc) (*session.Record, error) {
	rec, err := e.store.Transition(ctx, gameID, fn)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		sctx, cancel := detached(ctx)
		defer cancel()
		e.finalize(sctx, rec)
	}
	return rec, nil
}

func (e *Engine) finalize(ctx context.Context, rec *session.Record) {
	if e.repo != nil {
		if err := e.repo.FinishGame(ctx, rec); err != nil {
			obslog.L().Error("game_result_persist_error", zap.String("game_id", rec.GameID), zap.Error(err))
		} else {
			obslog.L().Info("game_result_persist",
				zap.String("game_id", rec.GameID),
				zap.String("winner", rec.Winner),
				zap.String("end_reason", string(rec.EndReason)),
			)
		}
	}
	e.sink.Publish(ctx, notify.EventOver, rec)
}

func (e *Engine) index(ctx context.Context, rec *session.Record, players ...string) {
	if err := e.store.IndexParticipants(ctx, rec.GameID, players...); err != nil {
		obslog.L().Warn("game_index_error", zap.String("game_id", rec.GameID), zap.Error(err))
	}
}

// detached keeps side effects running after the caller's request context
// ends; the transition they describe is already committed.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, notify.Event, *session.Record) {}
