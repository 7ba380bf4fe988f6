package httpapi

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a deliberately generic message. Specific failure causes
// stay in server logs so responses do not reveal which identities or
// credentials exist.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

const (
	msgRegistrationFailed   = "registration failed"
	msgAuthenticationFailed = "authentication failed"
	msgUnauthorized         = "unauthorized"
	msgBadRequest           = "bad request"
	msgInternal             = "internal error"
	msgNotFound             = "not found"
	msgConflict             = "conflict"
	msgTooManyRequests      = "too many requests"
)
