// Package config loads the daemon's configuration from environment
// variables.
package config

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Config is everything cmd/sessiond needs to assemble the session core.
type Config struct {
	AppName  string `env:"APP_NAME, default=sessionkit"`
	Env      string `env:"ENV, default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// BackendBaseURL is the app backend's API root, e.g. https://api.swyp.app.
	BackendBaseURL string `env:"BACKEND_BASE_URL, default=http://localhost:8080"`

	KakaoClientID string `env:"KAKAO_CLIENT_ID"`
	AppleClientID string `env:"APPLE_CLIENT_ID"` // the app bundle identifier

	Redis RedisConfig
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] process environment")
	}
	return &cfg, nil
}

// IsDev reports whether the process runs in a development environment,
// which switches logging to pretty console output.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
