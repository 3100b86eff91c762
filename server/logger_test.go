package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInitLoggerWritesFile(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })
	path := filepath.Join(t.TempDir(), "ski.log")
	if err := InitLogger(path, "info"); err != nil {
		t.Fatal(err)
	}
	Log.Debugf("hidden")
	Log.Infof("match %s started", "m1")
	SyncLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "match m1 started") || strings.Contains(string(data), "hidden") {
		t.Fatalf("log = %q", data)
	}
	if err := InitLogger(path, "loud"); err == nil {
		t.Fatal("bad level accepted")
	}
}
