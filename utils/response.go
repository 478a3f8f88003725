package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse defines the uniform structure for API responses. Data is null on errors.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Respond writes the envelope with code mirrored as the HTTP status.
func Respond(ctx *gin.Context, code int, message string, data interface{}) {
	ctx.JSON(code, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, "success", data)
}

// SuccessWithMessage returns a success response with a custom message.
func SuccessWithMessage(ctx *gin.Context, message string, data interface{}) {
	Respond(ctx, http.StatusOK, message, data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, code int, message string) {
	Respond(ctx, code, message, nil)
}
