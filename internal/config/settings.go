package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadSettings
const (
	EnvBackendURL        = "OPCUA_BACKEND_URL"
	EnvConnectionTimeout = "OPCUA_CONNECTION_TIMEOUT" // milliseconds
	EnvPollInterval      = "OPCUA_POLL_INTERVAL"      // Go duration, e.g. "30s"
	EnvListenAddr        = "OPCUA_CONSOLE_ADDR"
	EnvSessionKey        = "OPCUA_CONSOLE_SESSION_KEY"
	EnvHistoryDB         = "OPCUA_HISTORY_DB"
)

// Backend defaults, matching what the OPC UA backend assumes when a
// request omits them.
const (
	DefaultBackendURL        = "http://localhost:3000/api"
	DefaultConnectionTimeout = 10000 * time.Millisecond
	DefaultSecurityPolicy    = "None"
	DefaultSecurityMode      = SecurityModeNone
	DefaultAuthType          = AuthAnonymous

	DefaultPollInterval = 30 * time.Second
	DefaultListenAddr   = ":8090"
	historyFile         = "history.db"
)

// Settings holds deployment settings: where the backend lives and how the
// console server runs. They come from the environment, never from the
// registry file.
type Settings struct {
	BackendURL        string
	ConnectionTimeout time.Duration
	PollInterval      time.Duration
	ListenAddr        string
	SessionKey        string
	HistoryDB         string
}

// DefaultSettings returns settings with every field at its default.
func DefaultSettings() *Settings {
	s := &Settings{
		BackendURL:        DefaultBackendURL,
		ConnectionTimeout: DefaultConnectionTimeout,
		PollInterval:      DefaultPollInterval,
		ListenAddr:        DefaultListenAddr,
	}
	if dir, err := GetConfigDir(); err == nil {
		s.HistoryDB = filepath.Join(dir, historyFile)
	} else {
		s.HistoryDB = historyFile
	}
	return s
}

// LoadSettings loads .env files (if present) into the environment and then
// reads settings from it. Variables already set in the environment win over
// .env values.
func LoadSettings(envFiles ...string) (*Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return SettingsFromEnv()
}

// SettingsFromEnv reads settings from the process environment only.
func SettingsFromEnv() (*Settings, error) {
	s := DefaultSettings()

	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		s.BackendURL = strings.TrimRight(v, "/")
	}

	if v := strings.TrimSpace(os.Getenv(EnvConnectionTimeout)); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive number of milliseconds", EnvConnectionTimeout, v)
		}
		s.ConnectionTimeout = time.Duration(ms) * time.Millisecond
	}

	if v := strings.TrimSpace(os.Getenv(EnvPollInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < time.Second {
			return nil, fmt.Errorf("invalid %s %q: must be a duration of at least 1s", EnvPollInterval, v)
		}
		s.PollInterval = d
	}

	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		s.ListenAddr = v
	}
	if v := os.Getenv(EnvSessionKey); v != "" {
		s.SessionKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDB)); v != "" {
		s.HistoryDB = v
	}

	return s, nil
}

// String returns a representation of the settings safe for logging.
func (s *Settings) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("BackendURL: %s", s.BackendURL))
	parts = append(parts, fmt.Sprintf("ConnectionTimeout: %s", s.ConnectionTimeout))
	parts = append(parts, fmt.Sprintf("PollInterval: %s", s.PollInterval))
	parts = append(parts, fmt.Sprintf("ListenAddr: %s", s.ListenAddr))
	parts = append(parts, fmt.Sprintf("HistoryDB: %s", s.HistoryDB))
	if s.SessionKey != "" {
		parts = append(parts, "SessionKey: (set)")
	}
	return strings.Join(parts, ", ")
}
