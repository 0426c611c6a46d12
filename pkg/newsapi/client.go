package newsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	"go.uber.org/zap"
)

// Result is the uniform outcome of every backend call. Transport and parse
// failures end up as Success=false with a readable Message; nothing is
// returned as a Go error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](message string) Result[T] {
	return Result[T]{Message: message}
}

// Client talks to the news backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	jar        *resettableJar
	log        *zap.Logger

	mu      sync.RWMutex
	current *authdomain.Identity
}

// NewClient creates a backend client. The embedded cookie jar carries the
// backend's own session cookie for the /api/auth family.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	jar := newResettableJar()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar: jar,
		log: log.Named("newsapi"),
	}
}

// Identity returns the identity of the last successful login or register,
// or nil after logout.
func (c *Client) Identity() *authdomain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Client) setIdentity(id *authdomain.Identity) {
	c.mu.Lock()
	c.current = id
	c.mu.Unlock()
}

// resettableJar lets logout drop the backend session cookie without
// swapping the http.Client's jar under in-flight requests.
type resettableJar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
}

func newResettableJar() *resettableJar {
	inner, _ := cookiejar.New(nil)
	return &resettableJar{inner: inner}
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

func (j *resettableJar) Reset() {
	inner, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
}

func jsonRequest(method, path, token string, v any) (request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, token: token, body: bytes.NewReader(b), contentType: "application/json"}, nil
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (c *Client) do(ctx context.Context, req request) (response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return response{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// decode unmarshals a response body. Empty bodies count as malformed.
func (c *Client) decode(op string, resp response, v any) bool {
	if len(bytes.TrimSpace(resp.body)) == 0 {
		c.log.Warn("empty response body", zap.String("op", op), zap.Int("status", resp.status))
		return false
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		c.log.Warn("malformed response body", zap.String("op", op), zap.Int("status", resp.status), zap.Error(err))
		return false
	}
	return true
}

// detail extracts the backend's "detail" message. FastAPI validation errors
// send a list there; only plain strings are used.
func detail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var s string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &s) == nil && s != "" {
		return s
	}
	return payload.Message
}

// failure turns a non-2xx response into a message, preferring the backend's.
func failure[T any](resp response, fallback string) Result[T] {
	if d := detail(resp.body); d != "" {
		return fail[T](d)
	}
	return fail[T](fallback)
}

// flexID accepts numeric and string ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexID(strings.Trim(s, `"`))
	return nil
}

type wireUser struct {
	ID        flexID `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func (u *wireUser) identity() *authdomain.Identity {
	if u == nil || u.ID == "" {
		return nil
	}
	return &authdomain.Identity{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

type wireQuery struct {
	ID        flexID `json:"id"`
	UserID    flexID `json:"user_id"`
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
}

func (q wireQuery) entry() authdomain.QueryHistoryEntry {
	return authdomain.QueryHistoryEntry{
		ID:        string(q.ID),
		UserID:    string(q.UserID),
		Query:     q.Query,
		Timestamp: q.Timestamp,
	}
}
