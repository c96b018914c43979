package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/config"
	"claimflow/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := telemetry.Init(config.TelemetryConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	shutdown, err := telemetry.Init(config.TelemetryConfig{Enabled: true, ServiceName: "claimflow-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
