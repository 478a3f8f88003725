package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moments/models"
	"github.com/cppla/moments/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

var (
	errMissingHeader = errors.New("authorization header missing")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errEmptyToken    = errors.New("empty bearer token")
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired(tokens *utils.TokenService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		identity, err := authenticate(ctx, tokens)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, err.Error())
			ctx.Abort()
			return
		}
		setIdentity(ctx, identity)
		ctx.Next()
	}
}

// AuthOptional attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func AuthOptional(tokens *utils.TokenService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if identity, err := authenticate(ctx, tokens); err == nil {
			setIdentity(ctx, identity)
		}
		ctx.Next()
	}
}

// CurrentIdentity returns the identity set by AuthRequired or AuthOptional.
func CurrentIdentity(ctx *gin.Context) (models.Identity, bool) {
	userID := ctx.GetUint(ContextUserIDKey)
	if userID == 0 {
		return models.Identity{}, false
	}
	return models.Identity{UserID: userID, Username: ctx.GetString(ContextUsernameKey)}, true
}

func authenticate(ctx *gin.Context, tokens *utils.TokenService) (models.Identity, error) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return models.Identity{}, errMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Identity{}, errHeaderFormat
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return models.Identity{}, errEmptyToken
	}

	identity, err := tokens.Verify(tokenString)
	if err != nil {
		return models.Identity{}, utils.ErrInvalidToken
	}
	return identity, nil
}

func setIdentity(ctx *gin.Context, identity models.Identity) {
	ctx.Set(ContextUserIDKey, identity.UserID)
	ctx.Set(ContextUsernameKey, identity.Username)
}
