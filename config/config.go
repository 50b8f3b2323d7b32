package config

import (
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/logging"
)

// Config holds the project config values
type Config struct {
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"http://localhost:5001"`
	SocketURL   string `env:"SOCKET_URL"` // defaults to APIBaseURL
	AuthToken   string `env:"AUTH_TOKEN"`
	Environment string `env:"APP_ENV" envDefault:"local"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	JoinEvent      string        `env:"SOCKET_JOIN_EVENT" envDefault:"joinRoom"`

	Deduplicate         bool          `env:"CHAT_DEDUPLICATE"`
	Reconnect           bool          `env:"CHAT_RECONNECT"`
	ReconnectMaxElapsed time.Duration `env:"CHAT_RECONNECT_MAX_ELAPSED" envDefault:"5m"`

	ReminderSchedule string        `env:"REMINDER_SCHEDULE" envDefault:"@every 30m"`
	ReminderWindow   time.Duration `env:"REMINDER_WINDOW" envDefault:"24h"`
}

// New reads the config from the environment and installs the global logger for it
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = cfg.APIBaseURL
	}

	//setup zap logger and replace default logger
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	_ = zap.ReplaceGlobals(logger)

	return cfg, nil
}

// ErrorNotice is a useful function that will log the err with the given message and
// write the notice shown to the user
func ErrorNotice(message string, w io.Writer, err error) {
	zap.S().Errorw(message, "error", err)
	fmt.Fprintf(w, "%s: %s\n", message, api.Notice(err))
}
