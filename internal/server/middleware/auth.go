// Package middleware provides HTTP middleware for requester identity.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const requesterIDKey ContextKey = "requesterID"

// RequesterHeader carries the requester identity when auth is disabled.
const RequesterHeader = "X-Requester-ID"

// ErrNoRequester is returned when no identity is attached to a request.
var ErrNoRequester = errors.New("requester ID not found in request context")

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (RequesterGetter, error)
}

// RequesterGetter extracts the requester identity from token claims.
type RequesterGetter interface {
	GetRequesterID() string
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// token subject as the requester identity.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil || claims.GetRequesterID() == "" {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRequesterID(r.Context(), claims.GetRequesterID())))
		})
	}
}

// HeaderIdentity trusts the X-Requester-ID header. Only for deployments
// without auth, where the identity is informational.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(RequesterHeader)); id != "" {
			r = r.WithContext(WithRequesterID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithRequesterID returns a copy of ctx carrying id.
func WithRequesterID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requesterIDKey, id)
}

// GetRequesterID extracts the requester identity from the request context.
func GetRequesterID(r *http.Request) (string, error) {
	id, ok := r.Context().Value(requesterIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoRequester
	}
	return id, nil
}

// bearerToken parses "Authorization: Bearer <token>" case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
