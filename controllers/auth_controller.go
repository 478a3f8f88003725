package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/middleware"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/utils"
)

// AuthController handles registration, login and the current user.
type AuthController struct {
	users  *services.UserService
	tokens *utils.TokenService
}

// NewAuthController creates an AuthController.
func NewAuthController(users *services.UserService, tokens *utils.TokenService) *AuthController {
	return &AuthController{users: users, tokens: tokens}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := a.users.Register(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err, "failed to create user")
		return
	}

	utils.Sugar.Infow("user registered", "userId", user.ID, "username", user.Username)
	utils.SuccessWithMessage(ctx, "registered", gin.H{"userId": user.ID})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := a.users.Authenticate(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err, "failed to login")
		return
	}

	token, expiresAt, err := a.tokens.Issue(user.ID, user.Username)
	if err != nil {
		respondError(ctx, err, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"userId":    user.ID,
		"username":  user.Username,
		"token":     token,
		"expiresAt": expiresAt,
	})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := a.users.Get(ctx.Request.Context(), identity.UserID)
	if errors.Is(err, services.ErrNotFound) {
		// token outlived its account
		utils.Error(ctx, http.StatusUnauthorized, services.ErrUnknownUser.Error())
		return
	}
	if err != nil {
		respondError(ctx, err, "failed to load user")
		return
	}

	utils.Success(ctx, gin.H{"user": user})
}
