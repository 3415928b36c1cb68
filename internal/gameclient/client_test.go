package gameclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

func TestMoveRetriesRetryableErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/g1/move" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req gamedto.MoveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PlayerID != "a" || req.Position == nil || *req.Position != 84 {
			t.Errorf("unexpected body: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(gamedto.ErrorResponse{Error: gamedto.CodeConflict, Retryable: true})
			return
		}
		rec := session.New("g1", "a", "b", session.Settings{InitialSeconds: 60}, 100)
		rec.MoveSeq = 1
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackoff(time.Millisecond))
	rec, err := c.Move(context.Background(), "g1", "a", 84)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if rec.MoveSeq != 1 || calls.Load() != 2 {
		t.Fatalf("seq=%d calls=%d", rec.MoveSeq, calls.Load())
	}
}

func TestRejectionIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(gamedto.ErrorResponse{Error: gamedto.CodeNotYourTurn, Message: "not your turn"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackoff(time.Millisecond))
	_, err := c.Move(context.Background(), "g1", "b", 0)
	var de gamedto.DomainError
	if !errors.As(err, &de) || de.Code != gamedto.CodeNotYourTurn {
		t.Fatalf("expected NOT_YOUR_TURN, got %v", err)
	}
	if !errors.Is(err, session.ErrNotYourTurn) {
		t.Fatalf("decoded error should match the session sentinel")
	}
	if calls.Load() != 1 {
		t.Fatalf("rejections must not be retried, calls=%d", calls.Load())
	}
}

func TestCreateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackoff(time.Millisecond))
	if _, err := c.CreateGame(context.Background(), gamedto.CreateGameRequest{PlayerA: "a"}); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("create retried: calls=%d", calls.Load())
	}
	if _, err := c.GetGame(context.Background(), "g1"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 4 {
		t.Fatalf("get should use all 3 attempts, calls=%d", calls.Load())
	}
}
