package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const envPrefix = "DEVLEARNER"

// DefaultBanner is shown at the top of every new terminal session.
const DefaultBanner = "Welcome to DevOps Learner Terminal!|Type your commands below."

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath     string `envconfig:"DATA_PATH" default:"/app/data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Terminal session settings
	TerminalEndpoint          string `envconfig:"TERMINAL_ENDPOINT" default:"ws://localhost:8080/terminal"`
	TerminalBanner            string `envconfig:"TERMINAL_BANNER" default:"Welcome to DevOps Learner Terminal!|Type your commands below."`
	TerminalHistoryLimit      int    `envconfig:"TERMINAL_HISTORY_LIMIT" default:"0"`
	TerminalHandshakeTimeout  string `envconfig:"TERMINAL_HANDSHAKE_TIMEOUT" default:"0s"`
	TerminalReconnectAttempts int    `envconfig:"TERMINAL_RECONNECT_ATTEMPTS" default:"0"`
	TerminalReconnectInitial  string `envconfig:"TERMINAL_RECONNECT_INITIAL" default:"1s"`
	TerminalReconnectMax      string `envconfig:"TERMINAL_RECONNECT_MAX" default:"16s"`
	TerminalRecordingDir      string `envconfig:"TERMINAL_RECORDING_DIR" default:""`
	TerminalIdleTimeout       string `envconfig:"TERMINAL_IDLE_TIMEOUT" default:"30m"`

	// Code runner
	RunURL       string `envconfig:"RUN_URL" default:"http://localhost:8080/api/run"`
	RunTimeout   string `envconfig:"RUN_TIMEOUT" default:"30s"`
	RunRateLimit int    `envconfig:"RUN_RATE_LIMIT" default:"30"`

	// Courses, progress and notes
	CatalogPath      string `envconfig:"CATALOG_PATH" default:""`
	NotesKey         string `envconfig:"NOTES_KEY" default:""`
	ProgressDebounce string `envconfig:"PROGRESS_DEBOUNCE" default:"500ms"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process(envPrefix, &Cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
}

// Database returns the SQLite file path, defaulting to a file in DataPath.
func (s Settings) Database() string {
	if s.DatabasePath != "" {
		return s.DatabasePath
	}
	return filepath.Join(s.DataPath, "devlearner.db")
}

// BannerLines splits TerminalBanner on '|'. Empty segments are kept so a
// banner can contain blank lines; an empty banner yields no lines.
func (s Settings) BannerLines() []string {
	if s.TerminalBanner == "" {
		return nil
	}
	return strings.Split(s.TerminalBanner, "|")
}

func (s Settings) HandshakeTimeout() time.Duration {
	return parseDuration(s.TerminalHandshakeTimeout, 0)
}

func (s Settings) ReconnectInitial() time.Duration {
	return parseDuration(s.TerminalReconnectInitial, time.Second)
}

func (s Settings) ReconnectMax() time.Duration {
	return parseDuration(s.TerminalReconnectMax, 16*time.Second)
}

func (s Settings) IdleTimeout() time.Duration {
	return parseDuration(s.TerminalIdleTimeout, 30*time.Minute)
}

func (s Settings) RunTimeoutDuration() time.Duration {
	return parseDuration(s.RunTimeout, 30*time.Second)
}

func (s Settings) Debounce() time.Duration {
	return parseDuration(s.ProgressDebounce, 500*time.Millisecond)
}

// parseDuration falls back to def when v is not a valid non-negative duration.
func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
