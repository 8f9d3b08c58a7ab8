package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/savvyindians/go-lms-auth"
)

var _ auth.Logger = (*Logger)(nil)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "json")
	require.Error(t, err)
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, err := New("", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestLoggerWritesKeyValuePairs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewLogger(zap.New(core), "auth")

	logger.Info("login succeeded", "user_id", "42", "role", "participant")
	logger.Named("sessions").Warn("session revoked", "reason", "role_changed")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "login succeeded", entries[0].Message)
	assert.Equal(t, "auth", entries[0].LoggerName)
	assert.Equal(t, "42", entries[0].ContextMap()["user_id"])
	assert.Equal(t, "participant", entries[0].ContextMap()["role"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "auth.sessions", entries[1].LoggerName)
}

func TestNewLoggerAcceptsNil(t *testing.T) {
	logger := NewLogger(nil, "")
	assert.NotPanics(t, func() { logger.Error("ignored", "k", "v") })
}
