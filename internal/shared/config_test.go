package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "replay.db" {
			t.Errorf("expected database path replay.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Sync.Capacity != 100 {
			t.Errorf("expected sync capacity 100, got %d", config.Sync.Capacity)
		}

		if config.Sync.PlaylistName != "Replay" {
			t.Errorf("expected playlist name Replay, got %s", config.Sync.PlaylistName)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		err = CreateConfigFile(configPath)
		if err == nil {
			t.Fatal("creating config file again should fail")
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected already-exists message, got %q", err)
		}
		if strings.Contains(err.Error(), "%!w") {
			t.Errorf("error message carries a bad format verb: %q", err)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 3000

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[sync]
capacity = 50
history_limit = 25
interval = "90s"
num_workers = 2
rate_limit = 2.5
playlist_name = "On Repeat"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Sync.Capacity != 50 {
			t.Errorf("expected sync capacity 50, got %d", config.Sync.Capacity)
		}

		if config.Sync.RateLimit != 2.5 {
			t.Errorf("expected rate limit 2.5, got %f", config.Sync.RateLimit)
		}
	})

	t.Run("TickInterval", func(t *testing.T) {
		sync := SyncConfig{Interval: "90s"}
		if got := sync.TickInterval(); got != 90*time.Second {
			t.Errorf("expected 90s, got %v", got)
		}

		sync = SyncConfig{Interval: "not a duration"}
		if got := sync.TickInterval(); got != 5*time.Minute {
			t.Errorf("expected 5m fallback, got %v", got)
		}

		sync = SyncConfig{Interval: "-1m"}
		if got := sync.TickInterval(); got != 5*time.Minute {
			t.Errorf("expected 5m fallback for negative interval, got %v", got)
		}
	})

	t.Run("RequestTimeout", func(t *testing.T) {
		sync := SyncConfig{RequestExpiry: "10s"}
		if got := sync.RequestTimeout(); got != 10*time.Second {
			t.Errorf("expected 10s, got %v", got)
		}

		sync = SyncConfig{}
		if got := sync.RequestTimeout(); got != 30*time.Second {
			t.Errorf("expected 30s fallback, got %v", got)
		}
	})

	t.Run("SpotifyConfig", func(t *testing.T) {
		creds := SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://localhost:8080/callback"}
		if !creds.Valid() {
			t.Error("expected populated credentials to be valid")
		}

		m := creds.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["redirect_uri"] != "http://localhost:8080/callback" {
			t.Errorf("unexpected credential map: %v", m)
		}

		if (SpotifyConfig{ClientID: "id"}).Valid() {
			t.Error("expected credentials without a secret to be invalid")
		}
	})
}
