package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	File        string `envconfig:"LOG_FILE"`
	MaxSizeMB   int    `envconfig:"LOG_MAX_SIZE_MB" default:"20"`
	MaxBackups  int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays  int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`
}

// Operator holds configuration of the operator client.
type Operator struct {
	Origin      string        `envconfig:"COMMUTER_ORIGIN" default:"http://localhost:5000"`
	Inbox       string        `envconfig:"COMMUTER_INBOX"`
	LogCapacity int           `envconfig:"COMMUTER_LOG_CAPACITY" default:"50"`
	StatePoll   time.Duration `envconfig:"COMMUTER_STATE_POLL" default:"5s"`
	FrameDir    string        `envconfig:"COMMUTER_FRAME_DIR"`
	HTTPTimeout time.Duration `envconfig:"COMMUTER_HTTP_TIMEOUT" default:"30s"`
	Logging     LogConfig
}

// Agent holds configuration of the agent host.
type Agent struct {
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	Port     int    `envconfig:"PORT" default:"5000"`
	Database string `envconfig:"AGENTD_DB" default:"commuter.db"`

	AgentCommand string `envconfig:"AGENTD_AGENT_COMMAND"`
	AgentWorkDir string `envconfig:"AGENTD_AGENT_WORKDIR"`

	BrowserURL         string        `envconfig:"AGENTD_BROWSER_URL"`
	Headless           bool          `envconfig:"AGENTD_HEADLESS" default:"true"`
	ViewportWidth      int           `envconfig:"AGENTD_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight     int           `envconfig:"AGENTD_VIEWPORT_HEIGHT" default:"800"`
	StartURL           string        `envconfig:"AGENTD_START_URL" default:"about:blank"`
	ScreenshotInterval time.Duration `envconfig:"AGENTD_SCREENSHOT_INTERVAL" default:"2s"`
	ScreenshotRate     float64       `envconfig:"AGENTD_SCREENSHOT_RATE" default:"2"`
	DisableBrowser     bool          `envconfig:"AGENTD_DISABLE_BROWSER" default:"false"`

	Logging LogConfig
}

// Addr returns the listen address.
func (a *Agent) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoadOperator loads operator configuration from environment variables.
func LoadOperator() (*Operator, error) {
	var cfg Operator
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAgent loads agent host configuration from environment variables.
func LoadAgent() (*Agent, error) {
	var cfg Agent
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks operator settings.
func (o *Operator) Validate() error {
	if o.Origin == "" {
		return fmt.Errorf("COMMUTER_ORIGIN must not be empty")
	}
	if o.LogCapacity <= 0 {
		return fmt.Errorf("COMMUTER_LOG_CAPACITY must be positive, got %d", o.LogCapacity)
	}
	if o.StatePoll <= 0 {
		return fmt.Errorf("COMMUTER_STATE_POLL must be positive, got %s", o.StatePoll)
	}
	return nil
}

// Validate checks agent host settings.
func (a *Agent) Validate() error {
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", a.Port)
	}
	if a.ViewportWidth <= 0 || a.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", a.ViewportWidth, a.ViewportHeight)
	}
	if a.ScreenshotRate <= 0 {
		return fmt.Errorf("AGENTD_SCREENSHOT_RATE must be positive")
	}
	return nil
}
