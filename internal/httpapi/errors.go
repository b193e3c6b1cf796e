package httpapi

import (
	"encoding/json"
	"net/http"

	"vividd/internal/cache"
	"vividd/internal/ledger"
	"vividd/internal/tasks"
	"vividd/pkg/types"
)

// writeError maps well-known domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case tasks.IsInsufficientCredits(err):
		writeJSONError(w, http.StatusPaymentRequired, err.Error())
	case cache.IsInsufficientStorage(err):
		writeJSONError(w, http.StatusInsufficientStorage, err.Error())
	case ledger.IsUserNotFound(err), cache.IsArtifactNotFound(err), tasks.IsTaskNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case ledger.IsInvalidAmount(err), tasks.IsInvalidParams(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case ledger.IsAccountExists(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case tasks.IsTooBusy(err):
		IncrementBackpressure("queue_full")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
