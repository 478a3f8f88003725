package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/moments/config"
	"github.com/cppla/moments/controllers"
	"github.com/cppla/moments/middleware"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/utils"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Users   *services.UserService
	Posts   *services.PostService
	Uploads *services.UploadService
	Tokens  *utils.TokenService
	Cache   *utils.Cache
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Dependencies) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.Ginzap(accessLogger(cfg), time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(utils.Logger, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		// wildcard origins cannot be combined with credentials
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static(cfg.UploadURLPrefix, cfg.UploadDir)

	authController := controllers.NewAuthController(deps.Users, deps.Tokens)
	postController := controllers.NewPostController(deps.Posts, deps.Users, deps.Cache)
	uploadController := controllers.NewUploadController(deps.Uploads)
	userController := controllers.NewUserController(deps.Users)
	statsController := controllers.NewStatsController(deps.Users, deps.Posts, deps.Uploads)

	// logins and content changes draw from separate budgets
	authLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute).Middleware()
	writeLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute).Middleware()
	authRequired := middleware.AuthRequired(deps.Tokens)
	authOptional := middleware.AuthOptional(deps.Tokens)

	// the API is served at the root and again under /api
	for _, api := range []*gin.RouterGroup{&r.RouterGroup, r.Group("/api")} {
		api.GET("/health", health)
		api.GET("/stats", statsController.GetStats)

		authGroup := api.Group("/auth")
		authGroup.POST("/register", authLimiter, authController.Register)
		authGroup.POST("/login", authLimiter, authController.Login)
		authGroup.GET("/me", authRequired, authController.Me)

		postsGroup := api.Group("/posts")
		postsGroup.GET("", authOptional, postController.ListPosts)
		postsGroup.GET("/:id", authOptional, postController.GetPost)

		api.GET("/search", authOptional, postController.SearchPosts)
		api.GET("/tags", postController.ListTags)
		api.GET("/tags/hot", postController.HotTags)

		api.GET("/users/:id", userController.GetProfile)
		api.GET("/users/:id/posts", authOptional, postController.ListUserPosts)
		api.GET("/upload/mine", authRequired, uploadController.ListMine)

		protected := api.Group("")
		protected.Use(authRequired, writeLimiter)
		protected.POST("/posts", postController.CreatePost)
		protected.PUT("/posts/:id", postController.UpdatePost)
		protected.PATCH("/posts/:id", postController.UpdatePost)
		protected.DELETE("/posts/:id", postController.DeletePost)
		protected.POST("/upload", uploadController.Upload)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "route not found")
	})

	return r
}

func health(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"status": "ok"})
}

// accessLogger writes to the rolling GinPath file when configured, otherwise to the app logger.
func accessLogger(cfg config.AppConfig) *zap.Logger {
	if cfg.GinPath == "" {
		return utils.Logger
	}
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin access log %s unavailable, using app logger: %v", cfg.GinPath, err)
		return utils.Logger
	}
	return gl
}
