package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendsmart/internal/auth"
	"spendsmart/internal/core"
	"spendsmart/internal/ports"
	"spendsmart/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var okResponse = statusResponse{Status: "ok"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service and domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAuthDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error details from clients.
func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	for _, target := range []error{ports.ErrNotFound, ports.ErrUsernameTaken, auth.ErrInvalidCredentials} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return unwrapAll(err).Error()
}

// unwrapAll returns the innermost error of a %w chain.
func unwrapAll(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
