package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsKnownKeys(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, ConnectorKey, "kafka-main")
	WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "kafka-main", fields["connector"])
	assert.NotContains(t, fields, "job_id")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGetNeverReturnsNil(t *testing.T) {
	assert.NotNil(t, Get())
}
