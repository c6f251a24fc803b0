package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const DefaultMessage = "OK"

type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Payload interface{} `json:"payload"`
}

func Success(c *gin.Context, payload interface{}, message string) {
	if message == "" {
		message = DefaultMessage
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Payload: payload})
}

func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message, Payload: nil})
}

// Abort writes the failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	Fail(c, status, message)
	c.Abort()
}
