package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
)

const t0 = int64(1_700_000_000)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	mr.SetTime(time.Unix(t0, 0))
	s, err := Open(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func createActive(t *testing.T, s *Store, id string) *session.Record {
	t.Helper()
	rec, err := s.Create(context.Background(), func(now int64) *session.Record {
		return session.New(id, "a", "b", session.Settings{InitialSeconds: 600, IncrementSeconds: 5, Speed: "standard"}, now)
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestCreateGet(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	rec := createActive(t, s, "g1")
	if rec.CreatedAt != t0 || rec.StartedAt != t0 {
		t.Fatalf("record must carry the store clock, got created=%d started=%d", rec.CreatedAt, rec.StartedAt)
	}
	if ttl := mr.TTL("game:g1:state"); ttl != DefaultTTL {
		t.Fatalf("ttl = %v want %v", ttl, DefaultTTL)
	}
	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GameID != "g1" || got.Status != session.StatusActive || got.CurrentTurn != "a" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if _, err := s.Create(ctx, func(now int64) *session.Record {
		return session.New("g1", "x", "", session.Settings{}, now)
	}); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("duplicate create: got %v", err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestTransition_UsesStoreClockAndRefreshesTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	createActive(t, s, "g1")
	mr.FastForward(time.Hour)
	mr.SetTime(time.Unix(t0+7, 0))

	next, err := s.Transition(ctx, "g1", func(cur *session.Record, now int64) (*session.Record, error) {
		if now != t0+7 {
			t.Errorf("now = %d want %d", now, t0+7)
		}
		return session.ApplyMove(cur, "a", 84, now)
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if next.MoveSeq != 1 || next.ClockA != 600-7+5 || next.LastMoveAt != t0+7 {
		t.Fatalf("unexpected record after move: %+v", next)
	}
	if ttl := mr.TTL("game:g1:state"); ttl != DefaultTTL {
		t.Fatalf("ttl not refreshed: %v", ttl)
	}
	stored, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.MoveSeq != 1 || stored.CurrentTurn != "b" {
		t.Fatalf("transition not persisted: %+v", stored)
	}
}

func TestTransition_RejectionDoesNotWrite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	createActive(t, s, "g1")
	before, _ := s.Get(ctx, "g1")

	_, err := s.Transition(ctx, "g1", func(cur *session.Record, now int64) (*session.Record, error) {
		return session.ApplyMove(cur, "b", 0, now)
	})
	if !errors.Is(err, session.ErrNotYourTurn) {
		t.Fatalf("expected NOT_YOUR_TURN, got %v", err)
	}
	after, _ := s.Get(ctx, "g1")
	if after.MoveSeq != before.MoveSeq || after.UpdatedAt != before.UpdatedAt {
		t.Fatalf("rejected transition wrote the record")
	}
	if _, err := s.Transition(ctx, "nope", func(cur *session.Record, now int64) (*session.Record, error) {
		return cur, nil
	}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("missing record: got %v", err)
	}
}

func TestTransition_ConcurrentMovesSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	createActive(t, s, "g1")

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			_, err := s.Transition(ctx, "g1", func(cur *session.Record, now int64) (*session.Record, error) {
				return session.ApplyMove(cur, "a", cell, now)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, session.ErrNotYourTurn):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if accepted != 1 || rejected != n-1 {
		t.Fatalf("accepted=%d rejected=%d", accepted, rejected)
	}
	rec, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.MoveSeq != 1 || rec.Board.Count() != 1 {
		t.Fatalf("expected exactly one applied move, got seq=%d marks=%d", rec.MoveSeq, rec.Board.Count())
	}
}

func TestStoreUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()
	_, err := s.Get(context.Background(), "g1")
	if !errors.Is(err, session.ErrStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	_, err = s.Transition(context.Background(), "g1", func(cur *session.Record, now int64) (*session.Record, error) {
		return cur, nil
	})
	if !errors.Is(err, session.ErrStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE from transition, got %v", err)
	}
}

func TestScanAndIndex(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"g1", "g2", "g3"} {
		createActive(t, s, id)
		if err := s.IndexParticipants(ctx, id, "a", "b"); err != nil {
			t.Fatalf("IndexParticipants: %v", err)
		}
	}
	seen := map[string]bool{}
	if err := s.Scan(ctx, func(r *session.Record) { seen[r.GameID] = true }); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("scan saw %v", seen)
	}

	ids, err := s.GamesByUser(ctx, "a")
	if err != nil || len(ids) != 3 {
		t.Fatalf("GamesByUser: %v %v", ids, err)
	}
	if err := s.RemoveFromIndex(ctx, "a", "g1", "g2"); err != nil {
		t.Fatalf("RemoveFromIndex: %v", err)
	}
	ids, _ = s.GamesByUser(ctx, "a")
	if len(ids) != 1 || ids[0] != "g3" {
		t.Fatalf("index after removal: %v", ids)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := ParseRedisURL("http://localhost"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := ParseRedisURL("  "); err == nil {
		t.Fatalf("expected empty url error")
	}
}
