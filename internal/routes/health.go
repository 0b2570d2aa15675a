package routes

import (
	"encoding/json"
	"net/http"

	"github.com/rejdeboer/collab-server/pkg/httperrors"
	"github.com/rs/zerolog"
)

type HealthResponse struct {
	Ok bool `json:"ok"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	response, err := json.Marshal(HealthResponse{Ok: true})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("error marshalling health response")
		httperrors.InternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}
