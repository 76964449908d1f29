package shutdowncheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerConfig(t *testing.T) {
	assert.NoError(t, (&TracerConfig{}).ValidateAndDefault())
	assert.NoError(t, (&TracerConfig{Enabled: true, CollectorEndpoint: "localhost:4317"}).ValidateAndDefault())
	assert.Error(t, (&TracerConfig{Enabled: true}).ValidateAndDefault())
}

func TestInitTracerDisabled(t *testing.T) {
	closer, err := InitTracer(context.Background(), TracerConfig{CollectorEndpoint: "localhost:4317"})
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, closer(context.Background()))

	_, err = InitTracer(context.Background(), TracerConfig{Enabled: true})
	assert.Error(t, err)
}

func TestInitMeterDisabled(t *testing.T) {
	closer, err := InitMeter(context.Background(), TracerConfig{})
	require.NoError(t, err)
	assert.NoError(t, closer(context.Background()))

	_, err = InitMeter(context.Background(), TracerConfig{Enabled: true})
	assert.Error(t, err)
}
