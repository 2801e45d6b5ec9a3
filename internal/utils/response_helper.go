package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VisionsOfficial/consent-manager/internal/models"
	"github.com/VisionsOfficial/consent-manager/internal/svcerror"
	pkgutils "github.com/VisionsOfficial/consent-manager/pkg/utils"
)

// SendSuccessResponse sends a successful JSON response
func SendSuccessResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// SendCreatedResponse sends a 201 Created response
func SendCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendOKResponse sends a 200 OK response
func SendOKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendNoContentResponse sends a 204 No Content response
func SendNoContentResponse(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SendErrorResponse sends an error JSON response
func SendErrorResponse(c *gin.Context, statusCode int, errCode, message, details string) {
	c.JSON(statusCode, models.ErrorResponse{
		Code:    errCode,
		Message: message,
		Details: details,
	})
}

// SendBadRequestError sends a 400 Bad Request error
func SendBadRequestError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeBadRequest, message, details)
}

// SendInternalServerError sends a 500 Internal Server Error
func SendInternalServerError(c *gin.Context, message string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeInternalError, message, "")
}

// SendServiceError maps a service error to its HTTP representation. Foreign
// errors fall through to 500 without leaking internals.
func SendServiceError(c *gin.Context, err error) {
	switch svcerror.KindOf(err) {
	case svcerror.KindValidation:
		SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeValidation, "Validation failed", err.Error())
	case svcerror.KindNotFound:
		SendErrorResponse(c, http.StatusNotFound, models.ErrCodeNotFound, err.Error(), "")
	case svcerror.KindInvalidState:
		SendErrorResponse(c, http.StatusConflict, models.ErrCodeInvalidState, err.Error(), "")
	case svcerror.KindConflict:
		SendErrorResponse(c, http.StatusConflict, models.ErrCodeConflict, err.Error(), "")
	case svcerror.KindPrecondition:
		SendErrorResponse(c, http.StatusPreconditionFailed, models.ErrCodePrecondition, err.Error(), "")
	case svcerror.KindRemoteRejected:
		SendErrorResponse(c, http.StatusBadGateway, models.ErrCodeRemoteRejected, err.Error(), "")
	case svcerror.KindTransient:
		SendErrorResponse(c, http.StatusGatewayTimeout, models.ErrCodeTransient, err.Error(), "")
	default:
		SendInternalServerError(c, "An unexpected error occurred")
	}
}

// GetUserIDFromContext extracts the authenticated user ID from context
func GetUserIDFromContext(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	return userID.(string)
}

// GetParticipantIDFromContext extracts the calling participant ID from context
func GetParticipantIDFromContext(c *gin.Context) string {
	participantID, exists := c.Get("participantID")
	if !exists {
		return ""
	}
	return participantID.(string)
}

// GetCorrelationIDFromContext extracts the correlation ID from context
func GetCorrelationIDFromContext(c *gin.Context) string {
	correlationID, exists := c.Get("correlationID")
	if !exists {
		return pkgutils.GenerateCorrelationID()
	}
	return correlationID.(string)
}

// SetContextValue sets a value in the Gin context
func SetContextValue(c *gin.Context, key string, value interface{}) {
	c.Set(key, value)
}
