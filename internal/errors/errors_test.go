package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
		prefix   string
	}{
		{"validation", NewValidationError("monthly_income", "is required"), CategoryValidation, http.StatusBadRequest, "[VALIDATION_ERROR]"},
		{"storage", NewStorageError("append", fmt.Errorf("connection refused")), CategoryStorage, http.StatusServiceUnavailable, "[STORAGE_ERROR]"},
		{"configuration", NewConfigurationError("weights must sum to 1", nil), CategoryConfiguration, http.StatusInternalServerError, "[CONFIGURATION_ERROR]"},
		{"not found", NewNotFoundError("user"), CategoryNotFound, http.StatusNotFound, "[NOT_FOUND]"},
		{"conflict", NewConflictError("email already registered"), CategoryConflict, http.StatusConflict, "[CONFLICT]"},
		{"rate limit", NewRateLimitError("1s"), CategoryRateLimit, http.StatusTooManyRequests, "[RATE_LIMIT_EXCEEDED]"},
		{"payload too large", NewPayloadTooLargeError(1024), CategoryValidation, http.StatusRequestEntityTooLarge, "[VALIDATION_ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Contains(t, tt.err.Error(), tt.prefix)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	err := NewValidationError("monthly_income", "is required")

	assert.Equal(t, "monthly_income", err.Field)
	assert.Equal(t, "monthly_income: is required", err.Message())
	assert.True(t, IsValidation(err))
	assert.False(t, IsStorage(err))
}

func TestValidationErrorWithMapPicksFirstField(t *testing.T) {
	err := NewValidationErrorWithMap(map[string]string{
		"rent_payment_score": "must be between 0 and 1",
		"industry":           "is required",
	}, []string{"business_plan_quality", "industry", "rent_payment_score"})

	assert.Equal(t, "industry", err.Field)
	assert.Equal(t, "industry: is required", err.Message())
}

func TestCategoryHelpersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("scoring: %w", NewStorageError("append", nil))

	assert.True(t, IsStorage(wrapped))
	assert.Equal(t, CategoryStorage, ToAppError(wrapped).Category)
	assert.True(t, IsConfiguration(fmt.Errorf("boot: %w", NewConfigurationError("bad", nil))))
	assert.True(t, IsNotFound(NewNotFoundError("user")))
	assert.True(t, IsConflict(NewConflictError("dup")))
}

func TestToAppError(t *testing.T) {
	assert.Nil(t, ToAppError(nil))
	assert.Equal(t, CategoryTimeout, ToAppError(context.DeadlineExceeded).Category)
	assert.Equal(t, CategoryTimeout, ToAppError(context.Canceled).Category)
	assert.Equal(t, CategoryInternal, ToAppError(fmt.Errorf("boom")).Category)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(fmt.Errorf("database is locked")))
	assert.True(t, IsRetryableError(NewStorageError("append", nil)))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryableError(NewValidationError("age", "is required")))
	assert.False(t, IsRetryableError(NewConflictError("dup")))
}

func TestErrorHandlerRendersErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(NewValidationError("monthly_income", "is required"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "monthly_income: is required", body["error"])
	assert.Equal(t, "monthly_income", body["field"])
	assert.Equal(t, "validation", body["category"])
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
}

type failingCloser struct{ closed bool }

func (f *failingCloser) Close() error {
	f.closed = true
	return fmt.Errorf("already closed")
}

func TestSafeClose(t *testing.T) {
	c := &failingCloser{}
	SafeClose(c, "test")
	assert.True(t, c.closed)
	SafeClose(nil, "nil")
}
