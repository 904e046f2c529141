package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapStatusAndCategory(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		wantCategory ErrorCategory
		wantStatus   int
	}{
		{"validation", NewValidationError("bad repo url", nil), CategoryValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("analysis not found"), CategoryNotFound, http.StatusNotFound},
		{"timeout", NewTimeoutError("model call timed out", nil), CategoryTimeout, http.StatusGatewayTimeout},
		{"rate limit", NewRateLimitError("60"), CategoryRateLimit, http.StatusTooManyRequests},
		{"external api", NewExternalAPIError("GitHub", stderrors.New("502")), CategoryExternalAPI, http.StatusBadGateway},
		{"internal", NewInternalError("boom", nil), CategoryInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCategory, tt.err.Category)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestToAppErrorPassthrough(t *testing.T) {
	original := NewValidationError("invalid chunk size", nil)

	got := ToAppError(original)

	assert.Same(t, original, got)
}

func TestToAppErrorClassifiesContextErrors(t *testing.T) {
	assert.Equal(t, CategoryTimeout, ToAppError(context.Canceled).Category)
	assert.Equal(t, CategoryTimeout, ToAppError(context.DeadlineExceeded).Category)
}

func TestToAppErrorClassifiesNetworkErrors(t *testing.T) {
	err := fmt.Errorf("dial tcp: connection refused")

	got := ToAppError(err)

	assert.Equal(t, CategoryExternalAPI, got.Category)
	assert.Equal(t, http.StatusBadGateway, got.HTTPStatus)
}

func TestToAppErrorDefaultsToInternal(t *testing.T) {
	got := ToAppError(stderrors.New("something odd"))

	assert.Equal(t, CategoryInternal, got.Category)
}

func TestToAppErrorNil(t *testing.T) {
	assert.Nil(t, ToAppError(nil))
}

func TestErrorHandlerRendersStructuredResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/boom", func(c *gin.Context) {
		c.Error(NewNotFoundError("analysis not found"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestRecoveryHandlerReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal")
}
