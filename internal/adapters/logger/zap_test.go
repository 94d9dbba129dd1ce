package logger

import (
	"context"
	"testing"

	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (interfaces.LoggerPort, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewFromZap(zap.New(core)), logs
}

func TestZapLogger_ContextFields(t *testing.T) {
	log, logs := newObservedLogger()

	ctx := interfaces.ContextWithLogFields(context.Background(),
		interfaces.LogField{Key: "job_id", Value: "job-1"})
	log.InfoWithContext(ctx, "задача обработана", interfaces.LogField{Key: "platform", Value: "EBAY"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, "EBAY", fields["platform"])
}

func TestZapLogger_WithFieldKeepsParentUntouched(t *testing.T) {
	log, logs := newObservedLogger()

	child := log.WithField("component", "processor")
	child.Info("child")
	log.Info("parent")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "processor", logs.All()[0].ContextMap()["component"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "component")
}

func TestZapLogger_SetLevel(t *testing.T) {
	log := NewFromZap(zap.NewNop())

	log.SetLevel(interfaces.WarnLevel)
	assert.Equal(t, interfaces.WarnLevel, log.GetLevel())

	log.SetLevel(interfaces.DebugLevel)
	assert.Equal(t, interfaces.DebugLevel, log.GetLevel())
}

func TestAsynqLogger_ForwardsMessages(t *testing.T) {
	log, logs := newObservedLogger()

	NewAsynqLogger(log).Warn("redis ", "недоступен")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "redis недоступен", entry.Message)
	assert.Equal(t, "asynq", entry.ContextMap()["component"])
}
