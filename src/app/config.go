package app

import (
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from BTREDO_* environment variables, optionally seeded
// from a .env file.
type Config struct {
	// Env switches the logger between human-readable and JSON output.
	Env string `envconfig:"ENV" default:"prod"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PoolCapacity is the number of pages the buffer pool keeps in memory.
	PoolCapacity uint64 `envconfig:"POOL_CAPACITY" default:"1024"`

	// VerifyWorkers bounds the concurrency of page comparison.
	VerifyWorkers int `envconfig:"VERIFY_WORKERS" default:"4"`
}

const envPrefix = "BTREDO"

func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, errors.Wrapf(err, "load env file %s", envFile)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process environment")
	}
	return cfg, nil
}
