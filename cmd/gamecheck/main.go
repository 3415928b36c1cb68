package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/EoCiMrEo/TikTacToeArena/internal/gameclient"
	"github.com/EoCiMrEo/TikTacToeArena/internal/gomoku"
	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

// gamecheck plays a short scripted game against a running engine.
func main() {
	baseURL := os.Getenv("GAME_ENGINE_URL")
	if baseURL == "" {
		log.Fatal("GAME_ENGINE_URL is required")
	}
	playerA := envOr("CHECK_PLAYER_A", "check-a")
	playerB := envOr("CHECK_PLAYER_B", "check-b")

	client := gameclient.NewClient(baseURL, gameclient.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Println("/healthz ok")

	rec, err := client.CreateGame(ctx, gamedto.CreateGameRequest{
		PlayerA:  playerA,
		Settings: &gamedto.SettingsRequest{Speed: "blitz"},
	})
	if err != nil {
		log.Fatalf("create error: %v", err)
	}
	log.Printf("created game=%s status=%s", rec.GameID, rec.Status)

	if rec, err = client.Join(ctx, rec.GameID, playerB); err != nil {
		log.Fatalf("join error: %v", err)
	}
	log.Printf("joined status=%s turn=%s", rec.Status, rec.CurrentTurn)

	// A takes row 6, B answers on row 0.
	for col := 0; col < 5; col++ {
		if rec, err = client.Move(ctx, rec.GameID, playerA, gomoku.Index(6, col)); err != nil {
			log.Fatalf("move A col=%d: %v", col, err)
		}
		if rec.Status != session.StatusActive {
			break
		}
		if rec, err = client.Move(ctx, rec.GameID, playerB, gomoku.Index(0, col)); err != nil {
			log.Fatalf("move B col=%d: %v", col, err)
		}
	}
	log.Printf("final status=%s winner=%s reason=%s line=%v", rec.Status, rec.Winner, rec.EndReason, rec.WinningLine)

	recent, err := client.Recent(ctx, playerA, 3)
	if err != nil {
		log.Printf("/recent error: %v", err)
		return
	}
	for _, g := range recent {
		log.Printf("recent id=%s winner=%s moves=%d", g.ID, g.Winner, g.MoveSeq)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
