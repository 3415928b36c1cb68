package tiers

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/EoCiMrEo/TikTacToeArena/internal/session"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

func TestEmbeddedTiers(t *testing.T) {
	c, err := New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Default() != "standard" {
		t.Fatalf("default = %q", c.Default())
	}
	if got := c.Speeds(); !reflect.DeepEqual(got, []string{"blitz", "extended", "standard"}) {
		t.Fatalf("speeds = %v", got)
	}
	cases := map[string]session.Settings{
		"blitz":     {InitialSeconds: 300, IncrementSeconds: 0, Speed: "blitz"},
		" Extended": {InitialSeconds: 1200, IncrementSeconds: 10, Speed: "extended"},
		"":          {InitialSeconds: 600, IncrementSeconds: 5, Speed: "standard"},
		"bullet":    {InitialSeconds: 600, IncrementSeconds: 5, Speed: "standard"},
	}
	for speed, want := range cases {
		got, err := c.Resolve(&gamedto.SettingsRequest{Speed: speed})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", speed, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %+v want %+v", speed, got, want)
		}
	}
}

func TestResolveOverrides(t *testing.T) {
	c, err := New("", "blitz")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Resolve(nil)
	if err != nil || got.Speed != "blitz" {
		t.Fatalf("nil request should use default tier: %+v %v", got, err)
	}
	got, _ = c.Resolve(&gamedto.SettingsRequest{InitialSeconds: 90, IncrementSeconds: 2})
	if got.InitialSeconds != 90 || got.IncrementSeconds != 2 || got.Speed != "blitz" {
		t.Fatalf("explicit seconds not applied: %+v", got)
	}
	if _, err := c.Resolve(&gamedto.SettingsRequest{InitialSeconds: -1}); !errors.Is(err, session.ErrInvalidArgs) {
		t.Fatalf("negative seconds: got %v", err)
	}
	if _, err := New("", "nope"); err == nil {
		t.Fatalf("unknown default speed must fail")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("10-fast.yaml", "tiers:\n  bullet:\n    initial_seconds: 60\n    increment_seconds: 1\n")
	write("20-default.yml", "default: bullet\ntiers:\n  blitz:\n    initial_seconds: 180\n    increment_seconds: 2\n")
	write("notes.txt", "ignored")

	c, err := New(dir, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Default() != "bullet" {
		t.Fatalf("default = %q", c.Default())
	}
	if _, tier := c.Lookup("blitz"); tier.InitialSeconds != 180 {
		t.Fatalf("override not applied: %+v", tier)
	}

	write("30-dup.yaml", "tiers:\n  bullet:\n    initial_seconds: 30\n    increment_seconds: 0\n")
	if _, err := New(dir, ""); err == nil {
		t.Fatalf("expected duplicate tier error")
	}
}
