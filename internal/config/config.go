package config

import (
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every deployment-environment setting the client reads.
type Config struct {
	AppName     string        `env:"APP_NAME" envDefault:"TeamSales CRM"`
	APIBaseURL  string        `env:"CRM_API_URL" envDefault:"https://api.teamsales.app"`
	Environment string        `env:"ENV" envDefault:"development"`
	DataFolder  string        `env:"CRM_DATA_FOLDER" envDefault:"./data"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

var dotenvLoaded sync.Once

// Load reads a .env file when present, then parses the environment into a
// Config.
func Load() (Config, error) {
	dotenvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "[config.Load] parsing environment")
	}
	return cfg, nil
}

// IsProduction drives the cookie security attributes and logging defaults.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
