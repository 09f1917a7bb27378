package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvEndpoint = "FLUXSTUDIO_ENDPOINT"
	EnvOutput   = "FLUXSTUDIO_OUTPUT"
	EnvTimeout  = "FLUXSTUDIO_TIMEOUT"
)

const (
	DefaultEndpoint = "http://localhost:5000"
	DefaultTimeout  = 5 * time.Minute
)

// Config holds the settings shared by every command.
type Config struct {
	Endpoint     string
	OutputFolder string
	Timeout      time.Duration
}

// Load reads the configuration from the environment, after loading any
// of the given .env files that exist (".env" when none are given).
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", f, err)
		}
	}

	config := &Config{
		Endpoint:     os.Getenv(EnvEndpoint),
		OutputFolder: os.Getenv(EnvOutput),
		Timeout:      DefaultTimeout,
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("%s must be a positive number of seconds, got %q", EnvTimeout, v)
		}
		config.Timeout = time.Duration(secs) * time.Second
	}

	return config, nil
}
