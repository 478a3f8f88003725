package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/services"
	"github.com/cppla/moments/utils"
)

// respondError maps service errors onto the response envelope. Anything not
// recognised is logged and reported as a 500 with fallback as the message.
func respondError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.Error(ctx, http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": "))
	case errors.Is(err, services.ErrUsernameTaken):
		utils.Error(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnknownUser):
		utils.Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, "you can only modify your own posts")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, "post not found")
	case errors.Is(err, services.ErrPayloadTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrUnsupportedMediaType):
		utils.Error(ctx, http.StatusUnsupportedMediaType, err.Error())
	default:
		utils.Sugar.Errorw(fallback, "error", err, "method", ctx.Request.Method, "path", ctx.Request.URL.Path)
		utils.Error(ctx, http.StatusInternalServerError, fallback)
	}
}

// parseID reads a positive numeric path parameter.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
