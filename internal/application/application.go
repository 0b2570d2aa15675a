package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/logger"
	"github.com/rejdeboer/collab-server/internal/metrics"
	"github.com/rejdeboer/collab-server/internal/routes"
	"github.com/rejdeboer/collab-server/internal/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	hub           *websocket.Hub
	audit         audit.Sink
	server        *http.Server
	metricsServer *http.Server
	log           zerolog.Logger
}

func Build(settings configuration.Settings) Application {
	log := logger.Get()
	clk := clock.New()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sink := audit.New(settings.Audit.Brokers, settings.Audit.Topic, log)
	hub := websocket.NewHub(settings, clk, m, sink, log)

	handler := routes.CreateHandler(settings, &routes.Env{
		Hub:     hub,
		Metrics: m,
		Audit:   sink,
		Clock:   clk,
	})

	app := Application{
		hub:   hub,
		audit: sink,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", settings.Application.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}

	if settings.Metrics.Port != 0 {
		app.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", settings.Metrics.Port),
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return app
}

// Start serves until ctx is cancelled or a listener fails, then shuts the
// servers and the hub down.
func (app *Application) Start(ctx context.Context) error {
	defer app.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.hub.Run(ctx)
	})

	g.Go(func() error {
		app.log.Info().Msg(fmt.Sprintf("Server listening on %s", app.server.Addr))
		return serve(app.server)
	})

	if app.metricsServer != nil {
		g.Go(func() error {
			app.log.Info().Msg(fmt.Sprintf("Metrics listening on %s", app.metricsServer.Addr))
			return serve(app.metricsServer)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := app.server.Shutdown(shutdownCtx)
		if app.metricsServer != nil {
			err = errors.Join(err, app.metricsServer.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *Application) close() {
	if err := app.audit.Close(); err != nil {
		app.log.Error().Err(err).Msg("error closing audit sink")
	}
}
