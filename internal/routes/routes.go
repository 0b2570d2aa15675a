package routes

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/metrics"
	"github.com/rejdeboer/collab-server/internal/middleware"
	"github.com/rejdeboer/collab-server/internal/websocket"
	"github.com/rejdeboer/collab-server/pkg/httperrors"
)

type Env struct {
	Hub     *websocket.Hub
	Metrics *metrics.Metrics
	Audit   audit.Sink
	Clock   clock.Clock
}

func CreateHandler(settings configuration.Settings, env *Env) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.HandleFunc("/health", handleHealth)
	r.HandleFunc("/ws", env.handleWebSocket(settings))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.NotFound(w)
	})

	return middleware.WithMiddleware(r, settings.Application)
}
