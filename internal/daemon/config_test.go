package daemon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studydash/studydash/internal/app/engagement"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("STUDYDASH_HOME", "/srv/studydash")
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8420)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Dir != "/srv/studydash" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Engagement.MaxClaimPasses != engagement.DefaultMaxClaimPasses {
		t.Errorf("MaxClaimPasses = %d", cfg.Engagement.MaxClaimPasses)
	}
	if cfg.Cache.LeaderboardTTL != time.Minute {
		t.Errorf("LeaderboardTTL = %v", cfg.Cache.LeaderboardTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("STUDYDASH_HOME", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUDYDASH_HOME", dir)
	data := `
[server]
port = 9000
request_timeout = "10s"

[cache]
leaderboard_ttl = "5m"

[engagement]
max_claim_passes = 1

[logging]
level = "debug"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Cache.LeaderboardTTL != 5*time.Minute {
		t.Errorf("LeaderboardTTL = %v", cfg.Cache.LeaderboardTTL)
	}
	if cfg.Engagement.MaxClaimPasses != 1 || cfg.Logging.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	// Untouched sections keep defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %q", cfg.Server.Host)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("STUDYDASH_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.Cache.RedisAddr = "localhost:6379"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Server.Port != 9100 || got.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative passes", func(c *Config) { c.Engagement.MaxClaimPasses = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestNewWithConfig_Wiring(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUDYDASH_HOME", dir)
	cfg := DefaultConfig()
	cfg.Logging.File = ""
	cfg.Logging.Level = "error"

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}

	d.Health.RunOnce(context.Background())
	w := httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health = %d", w.Code)
	}
	w = httptest.NewRecorder()
	d.Server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/metrics = %d", w.Code)
	}
}

func TestNewWithConfig_BadAchievementsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUDYDASH_HOME", dir)
	cfg := DefaultConfig()
	cfg.Logging.File = ""
	cfg.Engagement.AchievementsFile = filepath.Join(dir, "missing.toml")

	if _, err := NewWithConfig(context.Background(), cfg); err == nil {
		t.Error("expected error for missing achievements file")
	}
}

func TestNewWithConfig_EmptyDriverUsesSQLiteHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUDYDASH_HOME", dir)
	cfg := DefaultConfig()
	cfg.Logging.File = ""
	cfg.Storage.Driver = ""
	cfg.Storage.Dir = ""

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig with empty driver: %v", err)
	}
	defer d.Close()

	if d.Config.Storage.Driver != "sqlite" || d.Config.Storage.Dir != dir {
		t.Errorf("Storage = %+v, want sqlite in %s", d.Config.Storage, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "state.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func newTestDaemon(t *testing.T, port int) *Daemon {
	t.Helper()
	t.Setenv("STUDYDASH_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Logging.File = ""
	cfg.Logging.Level = "error"
	cfg.Server.Port = port

	d, err := NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestServe_StopsOnCancel(t *testing.T) {
	d := newTestDaemon(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ListenFailureStopsEverything(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	d := newTestDaemon(t, ln.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- d.Serve(context.Background()) }()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Serve() should fail when the port is taken")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve kept running after the listener failed")
	}
}
