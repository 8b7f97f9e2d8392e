package notifier

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// jsonBody is the standard response envelope.
type jsonBody struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonBody{Data: data})
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := &errorDetail{Code: "internal_error", Message: err.Error()}

	var valErr ValidationError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "validation failed"
		if len(valErr) > 0 {
			detail.Details = make(map[string][]string)
			maps.Copy(detail.Details, valErr)
		}
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		detail.Code = "not_found"
		detail.Message = "notification not found"
	case errors.Is(err, ErrNotRetryable):
		status = http.StatusConflict
		detail.Code = "not_retryable"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonBody{Error: detail})
}
