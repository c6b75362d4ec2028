package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/client"
	"hoopstats/ingestion/internal/metrics"
	"hoopstats/ingestion/internal/repository"
	"hoopstats/ingestion/internal/syncer"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the error shape for every API error
type ErrorResponse struct {
	Error struct {
		Code       string                `json:"code"`
		Message    string                `json:"message"`
		Detail     string                `json:"detail,omitempty"`
		Candidates []analytics.PlayerRef `json:"candidates,omitempty"`
	} `json:"error"`
}

// errBadRequest marks handler-side parameter errors
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, status, resp)
}

// writeError maps err onto a status code and error code
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)

	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = http.StatusText(status)
	resp.Error.Detail = err.Error()

	var ambiguous *analytics.AmbiguousPlayerError
	if errors.As(err, &ambiguous) {
		resp.Error.Candidates = ambiguous.Candidates
	}

	metrics.RecordError("api", code)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}

	writeErrorResponse(w, status, resp)
}

func classify(err error) (int, string) {
	var reqErr *client.RequestError
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		return http.StatusConflict, "SYNC_IN_PROGRESS"
	case errors.Is(err, analytics.ErrPlayerNotFound):
		return http.StatusNotFound, "PLAYER_NOT_FOUND"
	case errors.Is(err, analytics.ErrAmbiguousPlayer):
		return http.StatusConflict, "AMBIGUOUS_PLAYER"
	case errors.Is(err, analytics.ErrUnknownMetric):
		return http.StatusBadRequest, "UNKNOWN_METRIC"
	case errors.Is(err, analytics.ErrInvalidQuery),
		errors.Is(err, syncer.ErrInvalidRange),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, client.ErrProviderUnavailable), errors.As(err, &reqErr):
		return http.StatusBadGateway, "PROVIDER_UNAVAILABLE"
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
