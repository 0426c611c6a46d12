package delivery

import (
	"net/http"
	"strings"

	"github.com/AveryLor/BiasBreaker-sub000/internal/article/usecase"
	authdelivery "github.com/AveryLor/BiasBreaker-sub000/internal/auth/delivery"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

type ArticleHandler struct {
	articleUsecase usecase.ArticleUsecase
	log            *zap.Logger
}

func NewArticleHandler(articleUsecase usecase.ArticleUsecase, log *zap.Logger) *ArticleHandler {
	return &ArticleHandler{
		articleUsecase: articleUsecase,
		log:            log.Named("search"),
	}
}

// Search runs a topic search and returns card view-models
// POST /api/search
func (h *ArticleHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a topic to search"})
		return
	}
	query := strings.TrimSpace(req.Query)

	if userID := authdelivery.CurrentUserID(c); userID != "" {
		h.log.Info("search", zap.String("user_id", userID), zap.String("query", query))
	}

	result, err := h.articleUsecase.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
