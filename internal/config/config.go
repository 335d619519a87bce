// Package config loads settings for the chat binaries.
//
// Values come from, lowest precedence first: struct defaults, an optional
// dotenv file (CHAT_ENV_FILE, default ".env"), the process environment, and
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultPort    = 1234
	envFileVar     = "CHAT_ENV_FILE"
	defaultEnvFile = ".env"
)

type Server struct {
	Host        string `env:"CHAT_HOST"`
	Port        int    `env:"CHAT_PORT,default=1234" validate:"min=1,max=65535"`
	MetricsAddr string `env:"CHAT_METRICS_ADDR,default=:9090" validate:"omitempty,hostname_port"`
	OutboxLimit int    `env:"CHAT_OUTBOX_LIMIT,default=10000" validate:"min=0"`
	LogLevel    string `env:"CHAT_LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Addr is the chat listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type Client struct {
	Host string `env:"CHAT_SERVER_HOST,default=localhost" validate:"required"`
	Port int    `env:"CHAT_SERVER_PORT,default=1234" validate:"min=1,max=65535"`
}

func (c Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadServer resolves the server configuration. args excludes the program name.
func LoadServer(args []string) (Server, error) {
	var cfg Server
	if err := fromEnvironment(&cfg); err != nil {
		return cfg, err
	}

	fset := flag.NewFlagSet("server", flag.ContinueOnError)
	fset.StringVar(&cfg.Host, "host", cfg.Host, "chat listen host")
	fset.IntVar(&cfg.Port, "port", cfg.Port, "chat listen port")
	fset.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address, empty disables")
	fset.IntVar(&cfg.OutboxLimit, "outbox-limit", cfg.OutboxLimit, "lines queued per client before it is disconnected, 0 for no limit")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "DEBUG, INFO, WARN or ERROR")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadClient resolves the client configuration. args excludes the program name.
func LoadClient(args []string) (Client, error) {
	var cfg Client
	if err := fromEnvironment(&cfg); err != nil {
		return cfg, err
	}

	fset := flag.NewFlagSet("client", flag.ContinueOnError)
	fset.StringVar(&cfg.Host, "host", cfg.Host, "chat server host")
	fset.IntVar(&cfg.Port, "port", cfg.Port, "chat server port")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// fromEnvironment decodes the process environment into v, filling gaps from
// the dotenv file without touching the process environment itself.
func fromEnvironment(v any) error {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	path := defaultEnvFile
	if p, ok := es[envFileVar]; ok && p != "" {
		path = p
	}
	fileVals, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, val := range fileVals {
			if _, ok := es[k]; !ok {
				es[k] = val
			}
		}
	case errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile:
		// optional
	default:
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := env.Unmarshal(es, v); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled()).Struct
