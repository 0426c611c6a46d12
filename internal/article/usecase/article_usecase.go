package usecase

import (
	"context"
	"errors"
	"time"

	articledomain "github.com/AveryLor/BiasBreaker-sub000/internal/article/domain"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"
)

// Searcher is the part of the backend client article search needs.
type Searcher interface {
	Chat(ctx context.Context, message string) newsapi.Result[*newsapi.ChatResponse]
}

// ArticleUsecase runs topic searches and shapes the results for the UI.
type ArticleUsecase interface {
	Search(ctx context.Context, query string) (*articledomain.SearchResult, error)
}

type articleUsecase struct {
	backend Searcher
	now     func() time.Time
}

func NewArticleUsecase(backend Searcher) ArticleUsecase {
	return &articleUsecase{backend: backend, now: time.Now}
}

func (u *articleUsecase) Search(ctx context.Context, query string) (*articledomain.SearchResult, error) {
	res := u.backend.Chat(ctx, query)
	if !res.Success {
		return nil, errors.New(res.Message)
	}
	return ToSearchResult(res.Data, u.now()), nil
}
