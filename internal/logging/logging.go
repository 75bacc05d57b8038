// Package logging builds the process logger from config.
package logging

import (
	"go.uber.org/zap"

	"quotedesk/internal/config"
)

// New builds a zap logger. Unknown levels fall back to info.
func New(cfg config.Log) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zc.Level = level

	switch cfg.Format {
	case "console":
		zc.Encoding = "console"
	case "json":
		zc.Encoding = "json"
	}
	return zc.Build(zap.Fields(zap.String("service", "quotedesk")))
}
