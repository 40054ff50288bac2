package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"debatelive/internal/gateway"
	"debatelive/pkg/errors"
	"debatelive/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// UserIDContextKey is the key for the authenticated user's id in context
	UserIDContextKey ContextKey = "user_id"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// SessionConfig configures the session-cookie authentication middleware
type SessionConfig struct {
	CookieName string
	JWTSecret  string
}

// Session authenticates requests via the session cookie. The cookie carries
// an HS256 JWT whose subject is the user id; the raw cookie value is also
// attached to the request context so the gateway can forward it upstream.
func Session(cfg SessionConfig, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				writeErrorResponse(w, errors.NewAuthenticationError("Session cookie is required"), logger)
				return
			}

			userID, err := parseSessionToken(cookie.Value, cfg.JWTSecret)
			if err != nil {
				logger.WithError(err).Error("Session token validation failed")
				writeErrorResponse(w, errors.NewAuthenticationError("Invalid or expired session"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			ctx = gateway.WithSession(ctx, cookie.Value)
			r = r.WithContext(ctx)

			logger.WithField("user_id", userID).Debug("User authenticated successfully")

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalSession authenticates the session cookie when present and
// continues anonymously when it is absent. An invalid cookie is still
// rejected.
func OptionalSession(cfg SessionConfig, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := parseSessionToken(cookie.Value, cfg.JWTSecret)
			if err != nil {
				logger.WithError(err).Error("Session token validation failed")
				writeErrorResponse(w, errors.NewAuthenticationError("Invalid or expired session"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			ctx = gateway.WithSession(ctx, cookie.Value)
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request was anonymous
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDContextKey).(string); ok {
		return userID
	}
	return ""
}

// parseSessionToken validates the HS256 session JWT and returns its subject
func parseSessionToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return subject, nil
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithError(appErr).Error("Request error")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	response := &errors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode error response")
	}
}
