// Package logging builds the zap.Logger shared by every package in this
// module, the same way rcong315/RunDJServer's cmd/crawler and cmd/api
// each built one and handed it to their internal packages.
package logging

import "go.uber.org/zap"

// New builds a production or development logger depending on level.
// "debug" selects zap's development config (human-readable, caller
// info); anything else selects the production JSON config with the
// atomic level set explicitly.
func New(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
