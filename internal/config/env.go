package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvConfigPath = "SCHEDCAL_CONFIG"
	EnvListen     = "SCHEDCAL_LISTEN"
	EnvEnv        = "SCHEDCAL_ENV"
	EnvLogLevel   = "SCHEDCAL_LOG_LEVEL"
	EnvTimezone   = "SCHEDCAL_TIMEZONE"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ApplyEnv overrides fields of c from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvEnv); v != "" {
		c.Env = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	c.Normalize()
}
