package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig configures the shopper client (guest store, session, API access).
type ClientConfig struct {
	APIBaseURL   string        `envconfig:"LIMINARA_API_BASE_URL" default:"http://localhost:8080"`
	StorageDir   string        `envconfig:"LIMINARA_STORAGE_DIR" default:".liminara"`
	HTTPTimeout  time.Duration `envconfig:"LIMINARA_HTTP_TIMEOUT" default:"15s"`
	WatchStorage bool          `envconfig:"LIMINARA_WATCH_STORAGE" default:"false"`
	LogLevel     string        `envconfig:"LIMINARA_CLIENT_LOG_LEVEL" default:"warn"`
	// ItemTimeout bounds each migration replay; zero leaves only HTTPTimeout in effect.
	ItemTimeout time.Duration `envconfig:"LIMINARA_MIGRATION_ITEM_TIMEOUT" default:"0s"`
}

// LoadClient reads the shopper client configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("%s is required", EnvClientAPIBaseURL)
	}
	if strings.TrimSpace(cfg.StorageDir) == "" {
		return nil, fmt.Errorf("%s is required", EnvClientStorageDir)
	}
	return &cfg, nil
}
