package records

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/EoCiMrEo/TikTacToeArena/internal/gomoku"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
)

func backends(t *testing.T) map[string]Repository {
	t.Helper()
	lite, err := Open(context.Background(), "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Repository{"memory": NewMemory(), "sqlite": lite}
}

func finished(id, a, b string, at int64) *session.Record {
	r := session.New(id, a, b, session.Settings{InitialSeconds: 600, Speed: "standard"}, at-100)
	r, _ = session.ApplyMove(r, a, gomoku.Index(6, 6), at-50)
	r, _ = session.TimeOut(r, at)
	return r
}

func TestRepository_Lifecycle(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := session.New("g1", "a", "", session.Settings{InitialSeconds: 300, Speed: "blitz"}, 1000)
			if err := repo.InsertGame(ctx, rec); err != nil {
				t.Fatalf("InsertGame: %v", err)
			}
			if err := repo.InsertGame(ctx, rec); err != nil {
				t.Fatalf("InsertGame must be idempotent: %v", err)
			}
			started, err := session.Attach(rec, "b", 1010)
			if err != nil {
				t.Fatalf("Attach: %v", err)
			}
			if err := repo.MarkStarted(ctx, started); err != nil {
				t.Fatalf("MarkStarted: %v", err)
			}
			if got, _ := repo.RecentByPlayer(ctx, "a", 5); len(got) != 0 {
				t.Fatalf("live games must not appear in history: %+v", got)
			}

			over, err := session.Abandon(started, 1020)
			if err != nil {
				t.Fatalf("Abandon: %v", err)
			}
			if err := repo.FinishGame(ctx, over); err != nil {
				t.Fatalf("FinishGame: %v", err)
			}
			if err := repo.FinishGame(ctx, over); err != nil {
				t.Fatalf("FinishGame twice: %v", err)
			}
			if err := repo.FinishGame(ctx, started); err == nil {
				t.Fatalf("non-terminal snapshot must be refused")
			}

			got, err := repo.RecentByPlayer(ctx, "b", 5)
			if err != nil {
				t.Fatalf("RecentByPlayer: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected one row, got %+v", got)
			}
			g := got[0]
			if g.ID != "g1" || g.PlayerB != "b" || g.Status != "abandoned" || g.EndReason != "abandoned" ||
				g.Speed != "blitz" || g.StartedAt != 1010 || g.FinishedAt != 1020 || g.CreatedAt != 1000 {
				t.Fatalf("unexpected row: %+v", g)
			}
			var board gomoku.Board
			if err := json.Unmarshal(g.FinalBoard, &board); err != nil {
				t.Fatalf("final board: %v", err)
			}
		})
	}
}

func TestRepository_RecentOrderAndLimit(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, at := range []int64{5000, 7000, 6000, 8000} {
				id := string(rune('w' + i))
				if err := repo.FinishGame(ctx, finished(id, "p", "q", at)); err != nil {
					t.Fatalf("FinishGame: %v", err)
				}
			}
			if err := repo.FinishGame(ctx, finished("other", "x", "y", 9000)); err != nil {
				t.Fatalf("FinishGame: %v", err)
			}
			got, err := repo.RecentByPlayer(ctx, "p", 3)
			if err != nil {
				t.Fatalf("RecentByPlayer: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("limit not applied: %d rows", len(got))
			}
			want := []int64{8000, 7000, 6000}
			for i, g := range got {
				if g.FinishedAt != want[i] {
					t.Fatalf("row %d finished_at=%d want %d", i, g.FinishedAt, want[i])
				}
				if g.Winner != "p" || g.EndReason != "timeout" || g.MoveSeq != 1 {
					t.Fatalf("unexpected row: %+v", g)
				}
			}
			if got, _ := repo.RecentByPlayer(ctx, "q", 0); len(got) != 4 {
				t.Fatalf("default limit should allow 4 rows, got %d", len(got))
			}
		})
	}
}

func TestOpen_Schemes(t *testing.T) {
	repo, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open empty: %v", err)
	}
	if _, ok := repo.(*Memory); !ok {
		t.Fatalf("empty url should give the memory repository, got %T", repo)
	}
	if _, err := Open(context.Background(), "mysql://localhost/db"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := Open(context.Background(), "sqlite://"); err == nil {
		t.Fatalf("expected empty sqlite path error")
	}
}

func TestSQLiteRebind(t *testing.T) {
	got := sqliteRebind("WHERE a=$1 OR b=$1 LIMIT $12")
	if got != "WHERE a=?1 OR b=?1 LIMIT ?12" {
		t.Fatalf("rebind: %q", got)
	}
}
