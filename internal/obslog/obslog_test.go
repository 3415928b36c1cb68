package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitWritesJSONFile(t *testing.T) {
	restore := Replace(zap.NewNop())
	defer restore()

	path := filepath.Join(t.TempDir(), "nested", "engine.log")
	if err := Init(Options{Level: "debug", Format: "json", ToFile: true, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Info("game_create", zap.String("game_id", "g1"))
	_ = L().Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"game_create"`) || !strings.Contains(string(raw), `"game_id":"g1"`) {
		t.Fatalf("unexpected log contents: %s", raw)
	}
}

func TestReplace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	L().Info("supervisor_terminate")
	restore()
	L().Info("dropped")
	if logs.Len() != 1 || logs.All()[0].Message != "supervisor_terminate" {
		t.Fatalf("unexpected entries: %+v", logs.All())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel(" WARN ") != zapcore.WarnLevel || parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("level parsing broken")
	}
}
