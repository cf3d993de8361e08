package exec

import "go.uber.org/zap"

var logger *zap.Logger = zap.NewNop()

// InitializeLogger sets the logger used by the executor.
func InitializeLogger(l *zap.Logger) {
	logger = l
}
