package infrastructure_test

import (
	"testing"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/lumenly/eventcore/pkg/infrastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerImplementsDomainLogger(t *testing.T) {
	logger, err := infrastructure.NewLogger("debug", "console")
	require.NoError(t, err)

	var _ domain.Logger = logger
	logger.Info("hello", "key", "value")
	logger.Debugf("formatted %s", "message")
	assert.NoError(t, logger.Sync())
}

func TestNewLoggerFallsBackToInfoOnInvalidLevel(t *testing.T) {
	logger, err := infrastructure.NewLogger("not-a-level", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
}
