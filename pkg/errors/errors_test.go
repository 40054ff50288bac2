package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   ErrorType
	}{
		{name: "bad request maps to validation", statusCode: http.StatusBadRequest, wantType: ErrorTypeValidation},
		{name: "unauthorized maps to authentication", statusCode: http.StatusUnauthorized, wantType: ErrorTypeAuthentication},
		{name: "forbidden maps to authorization", statusCode: http.StatusForbidden, wantType: ErrorTypeAuthorization},
		{name: "not found", statusCode: http.StatusNotFound, wantType: ErrorTypeNotFound},
		{name: "too many requests maps to rate limit", statusCode: http.StatusTooManyRequests, wantType: ErrorTypeRateLimit},
		{name: "other 4xx maps to client", statusCode: http.StatusConflict, wantType: ErrorTypeClient},
		{name: "500 maps to server", statusCode: http.StatusInternalServerError, wantType: ErrorTypeServer},
		{name: "503 maps to server", statusCode: http.StatusServiceUnavailable, wantType: ErrorTypeServer},
		{name: "unexpected status maps to unknown", statusCode: 302, wantType: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatusCode(tt.statusCode, "boom")
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, "boom", err.Message)
		})
	}
}

func TestAppError_Error(t *testing.T) {
	plain := NewNotFoundError("debate not found")
	assert.Equal(t, "not_found: debate not found", plain.Error())

	wrapped := NewServerError("upstream failed", fmt.Errorf("connection reset"))
	assert.Contains(t, wrapped.Error(), "upstream failed")
	assert.Contains(t, wrapped.Error(), "connection reset")
	assert.Equal(t, "connection reset", wrapped.Unwrap().Error())
}

func TestIsType(t *testing.T) {
	err := NewRateLimitError("slow down")
	assert.True(t, IsType(err, ErrorTypeRateLimit))
	assert.False(t, IsType(err, ErrorTypeServer))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeRateLimit))

	wrapped := fmt.Errorf("voting: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeRateLimit))
}
