package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(func(string) string { return "" })
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Tuning.TickRate != 20 {
		t.Fatalf("TickRate = %d, want 20", cfg.Tuning.TickRate)
	}
	if cfg.TCPAddr != "" {
		t.Fatalf("TCPAddr = %q, want empty", cfg.TCPAddr)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SKI_ADDR":            ":9000",
		"SKI_TICK_RATE":       "30",
		"SKI_PING_INTERVAL":   "2s",
		"SKI_TRUST_CLIENT_DT": "true",
		"SKI_TOKENS":          "abc:u1:Alice, def:u2:Bob",
		"SKI_LOG_LEVEL":       "warn",
	}
	cfg, err := FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Tuning.TickRate != 30 || cfg.PingInterval != 2*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.Tuning.TrustClientDt {
		t.Fatalf("TrustClientDt not applied")
	}
	if len(cfg.Tokens) != 2 || cfg.Tokens[1].DisplayName != "Bob" {
		t.Fatalf("tokens = %+v", cfg.Tokens)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"SKI_TICK_RATE":     "-1",
		"SKI_PING_INTERVAL": "soon",
		"SKI_TOKENS":        "broken",
	} {
		_, err := FromEnv(func(k string) string {
			if k == key {
				return val
			}
			return ""
		})
		if err == nil {
			t.Fatalf("%s=%q: expected error", key, val)
		}
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SKI_MAX_PLAYERS=3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKI_MAX_PLAYERS", "")
	os.Unsetenv("SKI_MAX_PLAYERS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.MaxPlayers != 3 {
		t.Fatalf("MaxPlayers = %d, want 3", cfg.Tuning.MaxPlayers)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
}

func TestTuningDerived(t *testing.T) {
	tu := DefaultTuning()
	if tu.TickInterval() != 50*time.Millisecond {
		t.Fatalf("TickInterval = %v", tu.TickInterval())
	}
	if tu.BroadcastEvery() != 1 {
		t.Fatalf("BroadcastEvery = %d", tu.BroadcastEvery())
	}
	if tu.MaxAcceleration() != 550 {
		t.Fatalf("MaxAcceleration = %v, want 550", tu.MaxAcceleration())
	}
	if -tu.BrakeDecel <= tu.Acceleration {
		t.Fatalf("brake must outweigh base acceleration")
	}
}

func TestLookupMode(t *testing.T) {
	m, err := LookupMode(ModeRace)
	if err != nil || m.FinishDistance <= 0 {
		t.Fatalf("race mode = %+v, %v", m, err)
	}
	if _, err := LookupMode("tag"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}
