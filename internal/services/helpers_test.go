package services

import (
	"testing"

	"go.uber.org/zap"

	"github.com/remodelai/remodel-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}
