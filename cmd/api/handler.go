package api

import (
	"net/http"

	articleUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/article/usecase"
	authUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	articleUsecase articleUsecase.ArticleUsecase
	config         *config.Config
	log            *zap.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, articleUc articleUsecase.ArticleUsecase, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		authUsecase:    authUc,
		articleUsecase: articleUc,
		config:         cfg,
		log:            log,
	}
}

// Router builds the gin engine with CORS and every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log.Named("http")))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.articleUsecase, h.config, h.log)
	return r
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	return h.Router().Run(addr)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
