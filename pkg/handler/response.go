package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pocketbudget/entitlement-engine/pkg/session"
	"github.com/sirupsen/logrus"
)

const (
	codeInvalidRequest  = "invalid_request"
	codeUnauthorized    = "unauthorized"
	codeSessionNotFound = "session_not_found"
	codeBannerNotFound  = "banner_not_found"
	codeNotDismissible  = "not_dismissible"
	codeNotAssigned     = "not_assigned"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, codeSessionNotFound, err.Error())
	case errors.Is(err, session.ErrBannerNotFound):
		writeError(w, http.StatusNotFound, codeBannerNotFound, err.Error())
	case errors.Is(err, session.ErrNotDismissible):
		writeError(w, http.StatusConflict, codeNotDismissible, err.Error())
	case errors.Is(err, ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	default:
		logrus.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
