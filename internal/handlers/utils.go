package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tastebook/apiserver/types"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

var validate = validator.New()

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// identityFromContext returns the authenticated caller, if any.
func identityFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextIdentityKey).(types.User)
	return user, ok && user.ID > 0
}

func withIdentity(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextIdentityKey, user)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
