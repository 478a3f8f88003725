package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/services"
	"github.com/cppla/moments/utils"
)

// UserController serves public user profiles.
type UserController struct {
	users *services.UserService
}

// NewUserController creates a UserController.
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// GetProfile returns the public profile of the user in the path.
func (u *UserController) GetProfile(ctx *gin.Context) {
	userID, ok := parseID(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "invalid user id")
		return
	}

	profile, err := u.users.Profile(ctx.Request.Context(), userID)
	if errors.Is(err, services.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(ctx, err, "failed to load user")
		return
	}
	utils.Success(ctx, gin.H{"user": profile})
}
