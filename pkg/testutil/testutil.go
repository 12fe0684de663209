// Package testutil provides test helpers shared by gateway packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fincore/gateway/pkg/logger"
)

// TestLogger creates a logger that writes to the test output and installs it
// as the global logger until the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l := zaptest.NewLogger(t)
	t.Cleanup(logger.Replace(l))
	return l
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
