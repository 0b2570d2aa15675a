package application

import (
	"context"
	"testing"
	"time"

	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopsOnCancel(t *testing.T) {
	settings := configuration.Default()
	settings.Application.Port = 0
	settings.Metrics.Port = 0
	settings.Audit.Brokers = nil

	app := Build(settings)
	require.Nil(t, app.metricsServer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Start(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
	assert.Equal(t, 0, app.hub.RoomCount())
}

func TestBuildMetricsServer(t *testing.T) {
	settings := configuration.Default()
	settings.Metrics.Port = 9191

	app := Build(settings)
	require.NotNil(t, app.metricsServer)
	assert.Equal(t, ":9191", app.metricsServer.Addr)
}
