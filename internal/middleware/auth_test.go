package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debatelive/internal/gateway"
	"debatelive/pkg/logger"
)

const (
	testCookieName = "debate_session"
	testSecret     = "test-secret"
)

func signSession(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func sessionHandler(captured *struct {
	userID  string
	session string
}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.userID = UserIDFromContext(r.Context())
		captured.session = gateway.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSession_ValidCookie(t *testing.T) {
	var captured struct {
		userID  string
		session string
	}
	mw := Session(SessionConfig{CookieName: testCookieName, JWTSecret: testSecret}, logger.Nop())
	handler := mw(sessionHandler(&captured))

	cookieValue := signSession(t, testSecret, "user-123", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: cookieValue})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-123", captured.userID)
	assert.Equal(t, cookieValue, captured.session)
}

func TestSession_Rejections(t *testing.T) {
	mw := Session(SessionConfig{CookieName: testCookieName, JWTSecret: testSecret}, logger.Nop())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "missing cookie", cookie: nil},
		{
			name:   "wrong secret",
			cookie: &http.Cookie{Name: testCookieName, Value: signSession(t, "other-secret", "user-123", time.Hour)},
		},
		{
			name:   "expired token",
			cookie: &http.Cookie{Name: testCookieName, Value: signSession(t, testSecret, "user-123", -time.Minute)},
		},
		{
			name:   "garbage token",
			cookie: &http.Cookie{Name: testCookieName, Value: "not-a-jwt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "authentication")
		})
	}
}

func TestOptionalSession_AnonymousPassesThrough(t *testing.T) {
	var captured struct {
		userID  string
		session string
	}
	mw := OptionalSession(SessionConfig{CookieName: testCookieName, JWTSecret: testSecret}, logger.Nop())
	handler := mw(sessionHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, captured.userID)
	assert.Empty(t, captured.session)
}

func TestOptionalSession_InvalidCookieStillRejected(t *testing.T) {
	mw := OptionalSession(SessionConfig{CookieName: testCookieName, JWTSecret: testSecret}, logger.Nop())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "garbage"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	mw := RequestID(logger.Nop())
	var seen string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	// A caller-provided id is preserved
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
