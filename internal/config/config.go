// Package config defines the configuration bundle the core consumes at
// startup: a flat struct decoded from a JSON file, loaded with
// github.com/sauerbraten/jsonfile, which tolerates "//" comments in an
// otherwise plain JSON file.
package config

import (
	"time"

	"github.com/sauerbraten/jsonfile"
)

// Config holds every option recognized by the core.
type Config struct {
	Auth struct {
		Port             int    `json:"port"`
		Workers          int    `json:"workers"`
		SessionTTLSeconds int   `json:"session_ttl_seconds"`
		LogLevel         string `json:"log_level"`
		MetricsAddr      string `json:"metrics_addr"`
		MaxInFlight      int    `json:"max_in_flight"`
	} `json:"auth"`

	Database struct {
		URI string `json:"uri"`
	} `json:"database"`
}

// Default returns the configuration with every built-in default applied,
// before a config file is loaded on top of it.
func Default() *Config {
	c := &Config{}
	c.Auth.Port = 16666
	c.Auth.Workers = 1
	c.Auth.SessionTTLSeconds = 30
	c.Auth.LogLevel = "info"
	c.Auth.MaxInFlight = 4096
	return c
}

// SessionTTL returns the configured session TTL as a time.Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLSeconds) * time.Second
}

// Load reads fileName (tolerating "//" comments, per jsonfile) on top of the
// defaults, so a config file only needs to specify the options it overrides.
func Load(fileName string) (*Config, error) {
	c := Default()
	err := jsonfile.ParseFile(fileName, c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
