package newsapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// BackendArticle is a source article as the synthesis backend returns it.
type BackendArticle struct {
	ID              flexID   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	SourceLink      string   `json:"source_link,omitempty"`
	BiasScore       *float64 `json:"bias_score,omitempty"`
	Perspective     string   `json:"perspective,omitempty"`
	BiasedSegments  []string `json:"biased_segments,omitempty"`
	Summary         []string `json:"summary,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
}

// IDString returns the article id normalized to a string.
func (a BackendArticle) IDString() string {
	return string(a.ID)
}

type NeutralSource struct {
	ID         flexID   `json:"id"`
	Title      string   `json:"title"`
	BiasScore  *float64 `json:"bias_score,omitempty"`
	SourceLink string   `json:"source_link,omitempty"`
	Summary    []string `json:"summary,omitempty"`
}

func (s NeutralSource) IDString() string {
	return string(s.ID)
}

// NeutralArticle is the synthesized article built from several sources.
type NeutralArticle struct {
	ID              flexID          `json:"id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	SourceArticles  []NeutralSource `json:"source_articles,omitempty"`
	SourceCount     int             `json:"source_count,omitempty"`
	SourceBiasRange string          `json:"source_bias_range,omitempty"`
}

type KeywordAnalysis struct {
	QueryMainWords   []string `json:"query_main_words"`
	MatchingKeywords []string `json:"matching_keywords"`
	MatchPercentage  float64  `json:"match_percentage"`
}

type ChatResponse struct {
	Status          string           `json:"status"`
	Message         string           `json:"message"`
	Query           string           `json:"query"`
	Keywords        []string         `json:"keywords"`
	KeywordAnalysis KeywordAnalysis  `json:"keyword_analysis"`
	Results         []BackendArticle `json:"results"`
	NeutralArticle  *NeutralArticle  `json:"neutral_article"`
}

// Chat submits a topic to the synthesis backend (POST /api/chat).
func (c *Client) Chat(ctx context.Context, message string) Result[*ChatResponse] {
	message = strings.TrimSpace(message)
	if message == "" {
		return fail[*ChatResponse]("Please enter a topic to search")
	}
	req, err := jsonRequest(http.MethodPost, "/api/chat", "", map[string]string{"message": message})
	if err != nil {
		return fail[*ChatResponse](MsgMalformed)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		c.log.Error("chat request failed", zap.Error(err))
		return fail[*ChatResponse](networkError("search"))
	}
	if !resp.ok() {
		return failure[*ChatResponse](resp, "Search failed. Please try again.")
	}

	var out ChatResponse
	if !c.decode("chat", resp, &out) {
		return fail[*ChatResponse](MsgMalformed)
	}
	return ok(&out)
}
