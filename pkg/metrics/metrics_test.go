package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledCollectorIsNoop(t *testing.T) {
	c, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.NotPanics(t, func() {
		c.SetQueueDepth(5)
		c.SetActiveWorkers(2)
		c.RecordCycle()
		c.RecordTaskCompletion("SHELL_COMMAND", true, 10*time.Millisecond)
		c.RecordTaskCompletion("SHELL_COMMAND", false, 10*time.Millisecond)
		c.RecordPlanExecution("COMPLETED")
		c.RecordReActCycle()
	})
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestNewEnabledCollectorWithoutServer(t *testing.T) {
	c, err := New(Config{Enabled: true, PrometheusPort: 0})
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Shutdown(context.Background())

	assert.NotPanics(t, func() {
		c.SetQueueDepth(3)
		c.SetActiveWorkers(1)
		c.RecordCycle()
		c.RecordTaskCompletion("FILE_WRITE", true, 5*time.Millisecond)
		c.RecordTaskCompletion("FILE_WRITE", false, 5*time.Millisecond)
		c.RecordPlanExecution("FAILED")
		c.RecordReActCycle()
	})
}

func TestShutdownOnNilServerIsNoop(t *testing.T) {
	c := &Collector{enabled: true}
	assert.NoError(t, c.Shutdown(context.Background()))
}
