package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
)

// TestSendServiceError_StatusMapping tests the service error to HTTP mapping
func TestSendServiceError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", svcerror.Validation("purposes must not be empty"), http.StatusBadRequest},
		{"not found", svcerror.NotFound("consent not found"), http.StatusNotFound},
		{"invalid state", svcerror.InvalidState("cannot move consent"), http.StatusConflict},
		{"conflict", svcerror.Conflict("modified concurrently"), http.StatusConflict},
		{"precondition", svcerror.Precondition("not granted"), http.StatusPreconditionFailed},
		{"remote rejected", svcerror.RemoteRejected("declined with status 403"), http.StatusBadGateway},
		{"transient", svcerror.Transient("no remote outcome", nil), http.StatusGatewayTimeout},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			SendServiceError(c, tt.err)

			assert.Equal(t, tt.expected, recorder.Code)
		})
	}
}

// TestSendServiceError_DoesNotLeakForeignDetails tests that unknown errors
// return a generic body
func TestSendServiceError_DoesNotLeakForeignDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	SendServiceError(c, errors.New("dsn user:pass@tcp failed"))

	assert.NotContains(t, recorder.Body.String(), "tcp")
	assert.Contains(t, recorder.Body.String(), "INTERNAL_ERROR")
}
