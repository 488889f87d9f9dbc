package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. Development environments get the human-readable
// development config; everything else gets JSON production output. debug lowers the
// level to Debug in either case.
func NewLogger(debug bool, environment string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if environment == "development" || environment == "dev" {
		cfg = zap.NewDevelopmentConfig()
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
