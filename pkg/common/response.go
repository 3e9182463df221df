package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse writes a 200 JSON envelope.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// CreatedResponse writes a 201 JSON envelope.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// ErrorResponse writes a JSON error envelope at the given status code.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// AppErrorResponse writes the JSON error envelope for an AppError, using its
// own status code, or 500 if err isn't an AppError.
func AppErrorResponse(c *gin.Context, err error) {
	appErr := AsAppError(err, "internal server error")
	ErrorResponse(c, appErr.Code, appErr.Message)
}
