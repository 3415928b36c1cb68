package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

// Memory is a development-only repository used when no database is configured.
type Memory struct {
	mu    sync.RWMutex
	games map[string]gamedto.FinishedGame
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]gamedto.FinishedGame)}
}

func (m *Memory) InsertGame(_ context.Context, rec *session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[rec.GameID]; exists {
		return nil
	}
	row := toRow(rec)
	row.FinalBoard = nil
	row.FinishedAt = 0
	m.games[rec.GameID] = row
	return nil
}

func (m *Memory) MarkStarted(_ context.Context, rec *session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.games[rec.GameID]
	if !ok || row.FinishedAt != 0 {
		return nil
	}
	row.PlayerB = rec.PlayerB
	row.Status = string(rec.Status)
	row.StartedAt = rec.StartedAt
	m.games[rec.GameID] = row
	return nil
}

func (m *Memory) FinishGame(_ context.Context, rec *session.Record) error {
	if !rec.Status.Terminal() {
		return fmt.Errorf("finish game %s: status %s is not terminal", rec.GameID, rec.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[rec.GameID] = toRow(rec)
	return nil
}

func (m *Memory) RecentByPlayer(_ context.Context, playerID string, limit int) ([]gamedto.FinishedGame, error) {
	playerID = strings.TrimSpace(playerID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := []gamedto.FinishedGame{}
	for _, g := range m.games {
		if g.FinishedAt == 0 || (g.PlayerA != playerID && g.PlayerB != playerID) {
			continue
		}
		items = append(items, g)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].FinishedAt != items[j].FinishedAt {
			return items[i].FinishedAt > items[j].FinishedAt
		}
		return items[i].ID > items[j].ID
	})
	if n := clampLimit(limit); len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (m *Memory) Close() error { return nil }
