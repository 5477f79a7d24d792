package main

import (
	"go.uber.org/zap"
)

// newLogger builds a JSON production logger, or a human readable one when
// log.format is console.
func newLogger(cfg LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level)
	return zc.Build()
}
