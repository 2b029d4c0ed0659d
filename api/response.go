package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/malwarebo/playgate/utils"
)

type ErrorEnvelope struct {
	Error *utils.APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func writeAPIError(w http.ResponseWriter, apiErr *utils.APIError) {
	if apiErr.Code == utils.ErrRateLimitExceeded.Code {
		if retryAfter, ok := apiErr.Detail["retry_after_seconds"].(int64); ok {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
	writeJSON(w, apiErr.Status, ErrorEnvelope{Error: apiErr})
}
