package app

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the zap logger the whole process shares. Dev gets the
// console encoder, everything else structured JSON.
func NewLogger(cfg Config) (*zap.SugaredLogger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.LogLevel); err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.LogLevel)
	}

	var zcfg zap.Config
	if cfg.Env == "dev" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log.Sugar(), nil
}
