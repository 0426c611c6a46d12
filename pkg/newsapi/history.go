package newsapi

import (
	"context"
	"net/http"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	"go.uber.org/zap"
)

// QueryHistory lists the signed-in user's searches (GET /api/user/queries).
func (c *Client) QueryHistory(ctx context.Context, token string) Result[[]authdomain.QueryHistoryEntry] {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/user/queries", token: token})
	if err != nil {
		c.log.Error("query history request failed", zap.Error(err))
		return fail[[]authdomain.QueryHistoryEntry]("Network error while fetching query history")
	}
	if !resp.ok() {
		return failure[[]authdomain.QueryHistoryEntry](resp, "Failed to fetch query history")
	}

	var env struct {
		Queries []wireQuery `json:"queries"`
	}
	if !c.decode("queries", resp, &env) {
		return fail[[]authdomain.QueryHistoryEntry](MsgMalformed)
	}
	c.log.Debug("query history received", zap.Int("count", len(env.Queries)))
	return ok(entries(env.Queries))
}

// SearchHistory is the token-family equivalent (GET /search-history/),
// which returns a bare array of {id, query}.
func (c *Client) SearchHistory(ctx context.Context, token string) Result[[]authdomain.QueryHistoryEntry] {
	if token == "" {
		return fail[[]authdomain.QueryHistoryEntry](MsgNotAuthenticated)
	}
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/search-history/", token: token})
	if err != nil {
		c.log.Error("search history request failed", zap.Error(err))
		return fail[[]authdomain.QueryHistoryEntry]("Network error while fetching query history")
	}
	if !resp.ok() {
		return failure[[]authdomain.QueryHistoryEntry](resp, "Failed to fetch query history")
	}

	var list []wireQuery
	if !c.decode("search-history", resp, &list) {
		return fail[[]authdomain.QueryHistoryEntry](MsgMalformed)
	}
	return ok(entries(list))
}

// History tries the query endpoint first and falls back to the token-family
// one. When both fail the first failure is returned.
func (c *Client) History(ctx context.Context, token string) Result[[]authdomain.QueryHistoryEntry] {
	res := c.QueryHistory(ctx, token)
	if res.Success {
		return res
	}
	if fallback := c.SearchHistory(ctx, token); fallback.Success {
		return fallback
	}
	return res
}

func entries(in []wireQuery) []authdomain.QueryHistoryEntry {
	out := make([]authdomain.QueryHistoryEntry, 0, len(in))
	for _, q := range in {
		out = append(out, q.entry())
	}
	return out
}
