// Package config holds the server settings. Every flag has an environment
// fallback so the binary can run unchanged in a container.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chessai/internal/errors"
)

// Config is the resolved server configuration.
type Config struct {
	Addr       string
	Debug      bool
	LogFormat  string
	EnginePath string
	ThinkTime  time.Duration
	DSN        string
	IdleTTL    time.Duration
}

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogFormat: "console",
		ThinkTime: time.Second,
		IdleTTL:   24 * time.Hour,
	}
}

// Load parses args with environment fallbacks read through getenv.
func Load(args []string, getenv func(string) string, out io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	def := Default()
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	envBool, err := parseBool(env("CHESSAI_DEBUG", ""), def.Debug)
	if err != nil {
		return Config{}, errors.Wrap(err, "CHESSAI_DEBUG")
	}
	envThink, err := parseDuration(env("CHESSAI_THINK", ""), def.ThinkTime)
	if err != nil {
		return Config{}, errors.Wrap(err, "CHESSAI_THINK")
	}
	envTTL, err := parseDuration(env("CHESSAI_IDLE_TTL", ""), def.IdleTTL)
	if err != nil {
		return Config{}, errors.Wrap(err, "CHESSAI_IDLE_TTL")
	}

	fs := flag.NewFlagSet("chessai", flag.ContinueOnError)
	if out != nil {
		fs.SetOutput(out)
	}
	var cfg Config
	fs.StringVar(&cfg.Addr, "addr", env("CHESSAI_ADDR", def.Addr), "listen address")
	fs.BoolVar(&cfg.Debug, "debug", envBool, "enable debug logging")
	fs.StringVar(&cfg.LogFormat, "log-format", env("CHESSAI_LOG_FORMAT", def.LogFormat), "log format: console or json")
	fs.StringVar(&cfg.EnginePath, "engine", env("CHESSAI_ENGINE", ""), "path to a UCI engine binary (default: search for stockfish)")
	fs.DurationVar(&cfg.ThinkTime, "think", envThink, "engine thinking time per move")
	fs.StringVar(&cfg.DSN, "dsn", env("CHESSAI_DSN", ""), "postgres DSN for game history (optional)")
	fs.DurationVar(&cfg.IdleTTL, "idle-ttl", envTTL, "drop sessions idle for longer than this")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.ThinkTime <= 0 {
		return fmt.Errorf("think time must be positive, got %s", c.ThinkTime)
	}
	if c.IdleTTL <= 0 {
		return fmt.Errorf("idle ttl must be positive, got %s", c.IdleTTL)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func parseBool(s string, fallback bool) (bool, error) {
	if s == "" {
		return fallback, nil
	}
	return strconv.ParseBool(s)
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
