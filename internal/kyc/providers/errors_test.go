package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		category  ErrorCategory
		retryable bool
	}{
		{http.StatusBadRequest, ErrorRejected, false},
		{http.StatusUnprocessableEntity, ErrorRejected, false},
		{http.StatusUnauthorized, ErrorAuthentication, false},
		{http.StatusTooManyRequests, ErrorRateLimited, true},
		{http.StatusGatewayTimeout, ErrorTimeout, true},
		{http.StatusInternalServerError, ErrorProviderOutage, true},
		{http.StatusBadGateway, ErrorProviderOutage, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := FromHTTPStatus("ai", tt.status, "body")
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestFromTransportError(t *testing.T) {
	assert.Equal(t, ErrorTimeout, FromTransportError("ai", context.DeadlineExceeded).Category)
	assert.False(t, IsRetryable(FromTransportError("ai", context.Canceled)))
	assert.Equal(t, ErrorProviderOutage, FromTransportError("ai", errors.New("connection refused")).Category)

	original := NewProviderError(ErrorBadData, "ai", "bad json", nil)
	assert.Same(t, original, FromTransportError("ai", fmt.Errorf("wrap: %w", original)))
}

func TestGetCategory_PlainError(t *testing.T) {
	assert.Equal(t, ErrorInternal, GetCategory(errors.New("x")))
	assert.False(t, IsRetryable(errors.New("x")))
}
