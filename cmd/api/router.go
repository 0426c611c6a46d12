package api

import (
	"net/http"

	articleDelivery "github.com/AveryLor/BiasBreaker-sub000/internal/article/delivery"
	articleUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/article/usecase"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/delivery"
	authUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, articleUsecase articleUsecase.ArticleUsecase, cfg *config.Config, log *zap.Logger) {
	authHandler := delivery.NewAuthHandler(authUsecase, delivery.HandlerConfig{
		SignInPath:   cfg.SignInPath,
		CookieMaxAge: cfg.MirrorMaxAge,
	}, log)
	pageHandler := delivery.NewPageHandler(authUsecase, log)
	articleHandler := articleDelivery.NewArticleHandler(articleUsecase, log)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.GET("/session", authHandler.Session)
			auth.POST("/signin", authHandler.SignIn)
			auth.POST("/signout", authHandler.SignOut)
			auth.POST("/register", authHandler.Register)
			auth.GET("/google", authHandler.GoogleStart)
			auth.GET("/google/callback", authHandler.GoogleCallback)
			auth.POST("/change-password", delivery.RequireAuth(authUsecase), authHandler.ChangePassword)
			auth.DELETE("/delete-account", delivery.RequireAuth(authUsecase), authHandler.DeleteAccount)
		}

		// User routes (protected)
		user := api.Group("/user")
		user.Use(delivery.RequireAuth(authUsecase))
		{
			user.GET("/queries", authHandler.QueryHistory)
		}

		// Search is open to everyone; signed-in callers are identified
		api.POST("/search", delivery.OptionalAuth(authUsecase), articleHandler.Search)
	}

	// Pages run behind the gatekeeper
	pages := r.Group("/")
	pages.Use(delivery.Gatekeeper(authUsecase, delivery.GatekeeperConfig{
		ProtectedPaths: cfg.ProtectedPaths,
		SignInPath:     cfg.SignInPath,
		CookieMaxAge:   cfg.MirrorMaxAge,
	}, log))
	{
		pages.GET("/", pageHandler.Home)
		pages.GET(cfg.SignInPath, pageHandler.SignIn)
		pages.GET("/dashboard", pageHandler.Dashboard)
		pages.GET("/profile", pageHandler.Profile)
	}

	// Unknown paths still pass the gatekeeper so protected prefixes redirect
	r.NoRoute(delivery.Gatekeeper(authUsecase, delivery.GatekeeperConfig{
		ProtectedPaths: cfg.ProtectedPaths,
		SignInPath:     cfg.SignInPath,
		CookieMaxAge:   cfg.MirrorMaxAge,
	}, log), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
