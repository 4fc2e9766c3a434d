package app

import (
	"context"

	authhandler "github.com/RuslanFatikhov/CoffeeLog/internal/auth/handler"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/provider/google"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/verifier"
	"github.com/RuslanFatikhov/CoffeeLog/internal/config"
	"github.com/RuslanFatikhov/CoffeeLog/internal/entry"
	"github.com/RuslanFatikhov/CoffeeLog/internal/middleware"
	"github.com/RuslanFatikhov/CoffeeLog/internal/session"
	"github.com/RuslanFatikhov/CoffeeLog/internal/user"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	inf, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	codec := session.NewCodec(cfg.SessionSecret)
	sessionStore := session.NewRedisStore(inf.redis)
	userStore := user.NewPostgresStore(inf.db)
	entryStore := entry.NewPostgresStore(inf.db)

	googleProvider, err := google.New(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	if err != nil {
		inf.close()
		return nil, nil, err
	}

	idVerifier := verifier.New(
		google.Issuer,
		cfg.GoogleClientID,
		oidc.NewRemoteKeySet(ctx, google.JWKSURL),
	)

	authHandler := authhandler.New(
		googleProvider,
		idVerifier,
		sessionStore,
		userStore,
		codec,
		cfg.CookieSecure(),
	)
	entryHandler := entry.NewHandler(entryStore)
	authMiddleware := middleware.NewAuthMiddleware(codec, sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", authHandler.Me)
	entryHandler.RegisterRoutes(api)

	return router, inf.close, nil
}
