package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/outofthemadness/handbot/internal/calendar"
)

const (
	DefaultServer       = "irc.freenode.net"
	DefaultPort         = 6667
	DefaultNick         = "Telemachus"
	DefaultFetchTimeout = 10 * time.Second
)

// Config holds all bot configuration
type Config struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Nick     string `yaml:"nick"`
	Username string `yaml:"username"`
	IRCName  string `yaml:"irc_name"`
	Channel  string `yaml:"channel"`
	LogFile  string `yaml:"log_file"`

	CalendarURL  string        `yaml:"calendar_url"`
	Timezone     string        `yaml:"timezone"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// ReconnectDelay is the minimum gap between reconnect attempts after a
	// lost connection. Zero means reconnect immediately.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Load builds the configuration from an optional YAML file, the environment
// and positional arguments, in increasing order of precedence.
// args is "<channel> <logfile> [nickname]".
func Load(path string, args []string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if len(args) > 3 {
		return nil, fmt.Errorf("too many arguments: expected <channel> <logfile> [nickname], got %d", len(args))
	}
	if len(args) > 0 {
		cfg.Channel = args[0]
	}
	if len(args) > 1 {
		cfg.LogFile = args[1]
	}
	if len(args) > 2 {
		cfg.Nick = args[2]
	}

	// Set defaults
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Nick == "" {
		cfg.Nick = DefaultNick
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Nick
	}
	if cfg.IRCName == "" {
		cfg.IRCName = cfg.Nick
	}
	if cfg.CalendarURL == "" {
		cfg.CalendarURL = calendar.DefaultURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = calendar.DefaultTimezone
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the bot cannot run without
func (c *Config) Validate() error {
	var errs []error
	if c.Channel == "" {
		errs = append(errs, errors.New("channel is required"))
	}
	if c.LogFile == "" {
		errs = append(errs, errors.New("log file is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	return errors.Join(errs...)
}

// Address returns the server in host:port form
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HANDBOT_SERVER"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("HANDBOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HANDBOT_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("HANDBOT_CALENDAR_URL"); v != "" {
		c.CalendarURL = v
	}
	if v := os.Getenv("HANDBOT_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("HANDBOT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	return nil
}
