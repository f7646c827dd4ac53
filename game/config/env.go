package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings are the process-level options read from the environment.
// Command-line flags override them when set.
type Settings struct {
	Host      string `env:"GEOCACHE_HOST" envDefault:"localhost"`
	Port      int    `env:"GEOCACHE_PORT" envDefault:"8080"`
	ConfigDir string `env:"GEOCACHE_CONFIG_DIR" envDefault:"configs"`
	// DefaultConfig overrides the config used when a session names none
	DefaultConfig string `env:"GEOCACHE_DEFAULT_CONFIG"`
	DataDir   string `env:"GEOCACHE_DATA_DIR" envDefault:"data"`
	// Storage selects the session backend: memory, file or sqlite
	Storage string `env:"GEOCACHE_STORAGE" envDefault:"file"`
	Debug   bool   `env:"GEOCACHE_DEBUG" envDefault:"false"`

	NgrokEnabled   bool   `env:"GEOCACHE_NGROK" envDefault:"false"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// StorageBackends lists the accepted Settings.Storage values
var StorageBackends = []string{"memory", "file", "sqlite"}

// LoadSettings parses Settings from the environment
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the values that env parsing cannot
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, s.Port)
	}
	for _, b := range StorageBackends {
		if s.Storage == b {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown storage backend %q (want one of %v)", ErrInvalidConfig, s.Storage, StorageBackends)
}
