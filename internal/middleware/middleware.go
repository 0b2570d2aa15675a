package middleware

import (
	"net/http"

	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rs/cors"
)

func WithMiddleware(next http.Handler, settings configuration.ApplicationSettings) http.Handler {
	return WithLogging(WithCors(next, settings.AllowedOrigins))
}

func WithCors(next http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(next)
}
