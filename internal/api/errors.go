package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/castbridge/internal/hostbus"
)

// Codes for failures that are not command outcomes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeUnavailable = "unavailable"
	ErrCodeInternal    = "internal_error"
	ErrCodeNotFound    = "not_found"
	ErrCodeMethod      = "method_not_allowed"
)

// errorBody shares the error object of a failed ack, so hosts parse one
// shape whether a request failed before or during a command:
//
//	{"error":{"code":"bad_request","message":"limit must be ..."}}
type errorBody struct {
	Error hostbus.AckError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may have gone away
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: hostbus.AckError{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// handleNotFound and handleMethodNotAllowed keep chi's fallbacks in the
// JSON error shape.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, ErrCodeMethod, r.Method+" not allowed on "+r.URL.Path)
}
