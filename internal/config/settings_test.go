package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBackendURL, EnvConnectionTimeout, EnvPollInterval, EnvListenAddr, EnvSessionKey, EnvHistoryDB} {
		t.Setenv(k, "")
	}
}

func TestSettingsFromEnv_Defaults(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s, err := SettingsFromEnv()
	if err != nil {
		t.Fatalf("SettingsFromEnv() error = %v", err)
	}
	if s.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %v, want %v", s.BackendURL, DefaultBackendURL)
	}
	if s.ConnectionTimeout != 10*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 10s", s.ConnectionTimeout)
	}
	if s.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", s.PollInterval)
	}
	if filepath.Base(s.HistoryDB) != "history.db" {
		t.Errorf("HistoryDB = %v, want .../history.db", s.HistoryDB)
	}
}

func TestSettingsFromEnv_Overrides(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv(EnvBackendURL, "http://backend:3000/api/")
	t.Setenv(EnvConnectionTimeout, "2500")
	t.Setenv(EnvPollInterval, "1m")
	t.Setenv(EnvListenAddr, "127.0.0.1:9000")
	t.Setenv(EnvSessionKey, "secret")

	s, err := SettingsFromEnv()
	if err != nil {
		t.Fatalf("SettingsFromEnv() error = %v", err)
	}
	if s.BackendURL != "http://backend:3000/api" {
		t.Errorf("BackendURL = %v, want trailing slash trimmed", s.BackendURL)
	}
	if s.ConnectionTimeout != 2500*time.Millisecond {
		t.Errorf("ConnectionTimeout = %v, want 2.5s", s.ConnectionTimeout)
	}
	if s.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v, want 1m", s.PollInterval)
	}
	if s.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %v", s.ListenAddr)
	}
	if strings.Contains(s.String(), "secret") {
		t.Error("String() must not print the session key")
	}
}

func TestSettingsFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvConnectionTimeout, "fast"},
		{EnvConnectionTimeout, "-5"},
		{EnvPollInterval, "soon"},
		{EnvPollInterval, "10ms"},
	}

	for _, tt := range tests {
		clearSettingsEnv(t)
		t.Setenv(tt.key, tt.value)
		if _, err := SettingsFromEnv(); err == nil {
			t.Errorf("SettingsFromEnv() with %s=%q should fail", tt.key, tt.value)
		}
	}
}

func TestLoadSettings_DotEnv(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv(EnvListenAddr, ":7000") // already set; .env must not override it
	// godotenv skips keys that exist at all, even when empty
	_ = os.Unsetenv(EnvBackendURL)

	envFile := filepath.Join(t.TempDir(), ".env")
	content := EnvBackendURL + "=http://from-dotenv:3000/api\n" + EnvListenAddr + "=:9999\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(EnvBackendURL) })

	s, err := LoadSettings(envFile)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.BackendURL != "http://from-dotenv:3000/api" {
		t.Errorf("BackendURL = %v, want value from .env", s.BackendURL)
	}
	if s.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %v, want environment to win over .env", s.ListenAddr)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	clearSettingsEnv(t)
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadSettings() with a missing file error = %v, want nil", err)
	}
}
