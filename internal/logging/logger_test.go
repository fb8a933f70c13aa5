package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Equal(t, development, logger.Core().Enabled(zap.DebugLevel))
		logger.Info("logger ready", zap.Bool("development", development))
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, OrNop(nil))
	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger))
}
