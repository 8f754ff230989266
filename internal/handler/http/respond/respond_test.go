package respond

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, errors.New("identifier is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"identifier is required"}`, rec.Body.String())
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		err      error
		expected string
	}{
		{
			name:     "validation error passes through",
			code:     http.StatusBadRequest,
			err:      errors.New("identifier is required"),
			expected: "identifier is required",
		},
		{
			name:     "safe wording still masked on 5xx",
			code:     http.StatusServiceUnavailable,
			err:      errors.New("coordination store unavailable"),
			expected: "internal server error",
		},
		{
			name:     "internal details are masked",
			code:     http.StatusBadRequest,
			err:      errors.New("dial tcp 10.0.0.5:6379: connection refused"),
			expected: "internal server error",
		},
		{
			name:     "5xx always masked",
			code:     http.StatusInternalServerError,
			err:      errors.New("value must be positive"),
			expected: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			SafeError(rec, tt.code, tt.err)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expected)
		})
	}
}

func TestSafeError_NilError(t *testing.T) {
	rec := httptest.NewRecorder()
	SafeError(rec, http.StatusInternalServerError, nil)
	assert.Empty(t, rec.Body.String())
}
