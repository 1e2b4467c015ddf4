package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/mrlokans/courseimport/internal/config"
)

func TestNew_ParsesLevel(t *testing.T) {
	logger, err := New(config.Log{Level: "warn"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.Log{Level: "loud"})
	assert.Error(t, err)
}

func TestMustNew_FallsBack(t *testing.T) {
	logger := MustNew(config.Log{Level: "loud"})
	assert.NotNil(t, logger)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
