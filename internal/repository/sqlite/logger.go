package sqlite

import "go.uber.org/zap"

var logger *zap.Logger = zap.NewNop()

// InitializeLogger sets the package-level logger. No function in this
// package logs through it.
func InitializeLogger(l *zap.Logger) {
	logger = l
}
