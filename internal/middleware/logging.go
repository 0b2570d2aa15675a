package middleware

import (
	"net/http"
	"time"

	"github.com/rejdeboer/collab-server/internal/logger"
	"github.com/rs/zerolog/hlog"
)

func WithLogging(next http.Handler) http.Handler {
	l := logger.Get()
	hlogHandler := hlog.NewHandler(l)

	accessHandler := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status_code", status).
			Dur("elapsed_ms", duration).
			Msg("")
	})

	remoteAddrHandler := hlog.RemoteAddrHandler("remote_addr")
	userAgentHandler := hlog.UserAgentHandler("user_agent")
	requestIdHandler := hlog.RequestIDHandler("req_id", "Request-Id")

	return hlogHandler(accessHandler(remoteAddrHandler(userAgentHandler(requestIdHandler(next)))))
}
