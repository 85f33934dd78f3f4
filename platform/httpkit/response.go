// Package httpkit holds the gin middleware and response helpers shared by
// every module's handlers.
package httpkit

import (
	"errors"
	"net/http"

	"lead_scoring_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

const msgInternal = "internal error"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

func errorBody(c *gin.Context, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Details:   details,
		RequestID: c.Writer.Header().Get(HeaderRequestID),
	}
}

func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Accepted answers for work handed to the background queue.
func Accepted(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusAccepted, payload)
}

func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, errorBody(c, message, details))
}

// HandleError writes err as a response and reports whether it did. The
// status comes from a wrapped *apperr.Error. Other errors become a 500 with
// a generic message and are attached to the gin context for RequestLogger.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		Error(c, domainErr.HTTPStatus(), domainErr.Message, domainErr.Details)
		return true
	}

	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, msgInternal, nil)
	return true
}
