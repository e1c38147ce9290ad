// Package service exposes the identity engine over HTTP. Each service struct
// owns its handlers; the router in router.go wires them to paths.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/divvyup/divvy/internal/auth"
	"github.com/divvyup/divvy/internal/middleware"
	"github.com/divvyup/divvy/internal/storage"
)

// errorBody is the JSON shape of every error response. Code is stable and
// machine-checkable so clients (and tests) can branch on cause.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondError maps the error taxonomy onto HTTP statuses in one place.
func respondError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrExpired):
		status, code = http.StatusGone, "expired"
	case errors.Is(err, storage.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "already_claimed"
	case errors.Is(err, storage.ErrAlreadyLinked):
		status, code = http.StatusConflict, "already_linked"
	case errors.Is(err, storage.ErrSelfClaim):
		status, code = http.StatusConflict, "self_claim"
	case errors.Is(err, storage.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, storage.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrEmailExists):
		status, code = http.StatusConflict, "email_exists"
	case errors.Is(err, auth.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	}
	respondJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func respondBadRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// caller returns the verified identity from the request context, or an
// ErrUnauthenticated error. Handlers never trust identity from request input.
func caller(r *http.Request) (accountID, email string, err error) {
	accountID = middleware.GetAccountID(r.Context())
	email = middleware.GetEmail(r.Context())
	if accountID == "" || email == "" {
		return "", "", storage.ErrUnauthenticated
	}
	return accountID, email, nil
}
