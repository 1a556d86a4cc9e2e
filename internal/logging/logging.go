// Package logging wraps zap into the single logger instance the builder
// and router thread through their call stacks.
package logging

import "go.uber.org/zap"

// New builds a SugaredLogger at the given level ("debug", "info", "warn",
// "error") with the given encoding ("json" or "console").
func New(level, encoding string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if encoding == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = zapLevel
	cfg.Encoding = encoding

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
