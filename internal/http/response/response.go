package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

// ErrorBody is the error envelope every endpoint answers with.
type ErrorBody struct {
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	ErrorCode string `json:"error_code"`
}

// RespondError maps err to its status and envelope. Messages of unknown
// errors never reach the client.
func RespondError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(errx.StatusOf(err), ErrorBody{
		Message:   errx.MessageOf(err),
		Field:     errx.FieldOf(err),
		ErrorCode: errx.CodeOf(err),
	})
}

// RespondStatus answers with a plain status and message, for failures that
// never reach the core (bad JSON, missing token).
func RespondStatus(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Message: message, ErrorCode: code})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
