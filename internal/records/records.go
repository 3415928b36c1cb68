// Package records mirrors session milestones into the durable games table.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

const DefaultRecentLimit = 5

// Repository is written at creation, at start and at the terminal
// transition. Writes are idempotent per game id.
type Repository interface {
	InsertGame(ctx context.Context, rec *session.Record) error
	MarkStarted(ctx context.Context, rec *session.Record) error
	FinishGame(ctx context.Context, rec *session.Record) error
	RecentByPlayer(ctx context.Context, playerID string, limit int) ([]gamedto.FinishedGame, error)
	Close() error
}

// Open selects a backend from the database URL scheme. An empty URL gives
// the in-memory repository.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	raw := strings.TrimSpace(databaseURL)
	switch {
	case raw == "":
		return NewMemory(), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return OpenPostgres(ctx, raw)
	case strings.HasPrefix(raw, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(raw, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", raw)
	}
}

func toRow(rec *session.Record) gamedto.FinishedGame {
	board, _ := json.Marshal(rec.Board)
	row := gamedto.FinishedGame{
		ID:        rec.GameID,
		PlayerA:   rec.PlayerA,
		PlayerB:   rec.PlayerB,
		Winner:    rec.Winner,
		Status:    string(rec.Status),
		EndReason: string(rec.EndReason),
		Speed:     rec.Settings.Speed,
		MoveSeq:   rec.MoveSeq,
		CreatedAt: rec.CreatedAt,
		StartedAt: rec.StartedAt,
	}
	if rec.Status.Terminal() {
		row.FinalBoard = board
		row.FinishedAt = rec.UpdatedAt
	}
	return row
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
