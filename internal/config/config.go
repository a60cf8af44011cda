package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Defaults for the serve command.
const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 9000
	DefaultEndpoint = "/logs"
	DefaultFile     = "received_logs.txt"
)

// Config is the immutable startup configuration. It is assembled once in
// Load and never modified afterwards.
type Config struct {
	Host     string // bind address
	Port     int    // bind port, 1-65535
	Endpoint string // accepted POST path
	File     string // log file to append to
	Fsync    bool   // fsync after every append
}

// Load assembles the configuration from viper (CLI flags, LOGSINK_*
// environment variables, built-in defaults) and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		Endpoint: viper.GetString("endpoint"),
		File:     viper.GetString("file"),
		Fsync:    viper.GetBool("fsync"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can produce a working server.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("invalid endpoint %q: must begin with /", c.Endpoint)
	}
	if c.File == "" {
		return fmt.Errorf("log file path must not be empty")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
