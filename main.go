package main

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/moments/config"
	"github.com/cppla/moments/routes"
	"github.com/cppla/moments/services"
	"github.com/cppla/moments/store"
	"github.com/cppla/moments/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	var stores store.Stores
	if cfg.StoreDriver == "memory" {
		stores = store.NewMemory()
		utils.Sugar.Warn("using in-memory store; data is lost on restart")
	} else {
		db, err := config.OpenDatabase(cfg)
		if err != nil {
			utils.Sugar.Fatalf("open database: %v", err)
		}
		stores = store.NewGorm(db)
	}

	cache := utils.NewCache(utils.NewRedis(cfg))
	tokens := utils.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	users := services.NewUserService(stores.Users, stores.Posts, utils.NewPasswordHasher(bcrypt.DefaultCost))

	r := routes.SetupRouter(cfg, routes.Dependencies{
		Users:   users,
		Posts:   services.NewPostService(stores.Posts, stores.Users),
		Uploads: services.NewUploadService(stores.Files, cfg.UploadDir, cfg.UploadURLPrefix, cfg.UploadMaxBytes()),
		Tokens:  tokens,
		Cache:   cache,
	})

	utils.Sugar.Infof("Starting server on port %s (store=%s, cache=%t)", cfg.AppPort, cfg.StoreDriver, cache.Enabled())
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
