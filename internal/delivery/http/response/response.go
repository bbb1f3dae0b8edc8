package response

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Response standardizes the API JSON response
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     interface{} `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func requestID(c *gin.Context) string {
	reqID, _ := c.Get("RequestID")
	idStr, _ := reqID.(string)
	return idStr
}

// Success sends a success response
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: requestID(c),
	})
}

// Error sends an error response. details lands in the "error" slot.
func Error(c *gin.Context, code int, message string, details interface{}) {
	c.JSON(code, Response{
		Success:   false,
		Message:   message,
		Error:     details,
		RequestID: requestID(c),
	})
}

// Versioned sends a success response with the resource version as a strong ETag.
func Versioned(c *gin.Context, code int, message string, version int64, data interface{}) {
	c.Header("ETag", fmt.Sprintf("%q", fmt.Sprint(version)))
	Success(c, code, message, data)
}

// Attachment streams a generated file download.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, contentType, data)
}
